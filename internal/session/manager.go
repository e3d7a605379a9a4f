// Package session tracks the signed-in principal and their profile and
// exposes the account operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/aidplug-crm/internal/blob"
	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/validate"
)

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
)

// ResetPath is appended to the site URL to form the password-reset redirect.
const ResetPath = "/reset-password"

// ErrNoUser is returned by profile operations when nobody is signed in.
var ErrNoUser = errors.New("No user logged in")

// State is a snapshot of the session. Profile is nil while it does not exist.
type State struct {
	Status  Status         `json:"status"`
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
	Error   string         `json:"error,omitempty"`
}

// Config wires a Manager.
type Config struct {
	Auth     repository.AuthRepositoryInterface
	Profiles repository.CollectionRepositoryInterface[model.Profile]
	// Photos stores profile photos. Optional.
	Photos blob.Store
	// Events delivers session-change notifications. Optional.
	Events queue.Queue
	// SiteURL is the base of the password-reset redirect.
	SiteURL string
	Logger  *zap.Logger
	// OnSignOut runs after a successful sign-out, e.g. to reset collections.
	OnSignOut func(ctx context.Context)
	// Timeout bounds the work done for one notification. Defaults to 30s.
	Timeout time.Duration
}

// Manager owns the session state from Start until Close.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	// op serializes state transitions.
	op sync.Mutex

	mu    sync.RWMutex
	state State

	base        context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger,
		state:  State{Status: StatusLoading},
		base:   base,
		cancel: cancel,
	}
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	return s
}

// UserID implements repository.PrincipalInterface from the tracked state.
func (m *Manager) UserID(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.User == nil {
		return "", appErrors.ErrNotAuthenticated
	}
	return m.state.User.ID, nil
}

// Start resolves a persisted session and loads its profile, then follows
// session-change notifications until Close. A missing profile is not an
// error here.
func (m *Manager) Start(ctx context.Context) error {
	m.op.Lock()
	err := m.resolve(ctx)
	m.op.Unlock()

	if m.cfg.Events != nil {
		unsub, serr := m.cfg.Events.Subscribe(queue.TopicAuthState, m.onAuthEvent)
		if serr != nil {
			return fmt.Errorf("subscribe to session changes: %w", serr)
		}
		m.unsubscribe = unsub
	}
	return err
}

func (m *Manager) resolve(ctx context.Context) error {
	m.set(func(s *State) { s.Status = StatusLoading })

	sess, err := m.cfg.Auth.Session(ctx)
	if err != nil {
		m.logger.Warn("could not restore session", zap.Error(err))
		m.set(func(s *State) { *s = State{Status: StatusUnauthenticated, Error: appErrors.Message(err)} })
		return err
	}
	if sess == nil {
		m.set(func(s *State) { *s = State{Status: StatusUnauthenticated} })
		return nil
	}
	profile, err := m.loadProfile(ctx, sess.User.ID)
	if err != nil {
		m.logger.Warn("profile unavailable", zap.String("user_id", sess.User.ID), zap.Error(err))
	}
	m.signedIn(sess.User, profile)
	return nil
}

// onAuthEvent runs on the queue goroutine for every session change.
func (m *Manager) onAuthEvent(payload any) error {
	ev, ok := payload.(repository.AuthEvent)
	if !ok {
		return fmt.Errorf("invalid payload type %T, expected AuthEvent", payload)
	}
	ctx, cancel := context.WithTimeout(m.base, m.cfg.Timeout)
	defer cancel()

	m.op.Lock()
	defer m.op.Unlock()

	m.logger.Debug("session changed", zap.String("event", ev.Event))
	if ev.Session == nil {
		m.set(func(s *State) { *s = State{Status: StatusUnauthenticated} })
		return nil
	}
	u := ev.Session.User
	profile, err := m.loadProfile(ctx, u.ID)
	if err != nil {
		m.signedIn(u, nil)
		return err
	}
	if profile == nil {
		profile, err = m.createProfile(ctx, u)
		if err != nil {
			m.logger.Error("failed to create profile", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	m.signedIn(u, profile)
	return err
}

// SignIn authenticates and loads the profile.
func (m *Manager) SignIn(ctx context.Context, email, password string) (State, error) {
	if err := validate.Email(email); err != nil {
		return m.State(), err
	}
	if err := validate.Password(password, false); err != nil {
		return m.State(), err
	}

	m.op.Lock()
	defer m.op.Unlock()
	sess, err := m.cfg.Auth.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		err = m.fail(err)
		return m.State(), err
	}
	m.afterAuth(ctx, sess.User)
	return m.State(), nil
}

// SignUp registers a user. When the provider requires email confirmation no
// session is created and the state stays unauthenticated.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) (State, error) {
	if err := validate.Email(email); err != nil {
		return m.State(), err
	}
	if err := validate.Password(password, true); err != nil {
		return m.State(), err
	}
	if err := validate.FullName(fullName); err != nil {
		return m.State(), err
	}

	m.op.Lock()
	defer m.op.Unlock()
	u, sess, err := m.cfg.Auth.SignUp(ctx, strings.TrimSpace(email), password, strings.TrimSpace(fullName))
	if err != nil {
		err = m.fail(err)
		return m.State(), err
	}
	if sess == nil {
		m.logger.Info("sign-up awaiting email confirmation", zap.String("user_id", u.ID))
		m.set(func(s *State) { *s = State{Status: StatusUnauthenticated} })
		return m.State(), nil
	}
	m.afterAuth(ctx, sess.User)
	return m.State(), nil
}

func (m *Manager) afterAuth(ctx context.Context, u model.User) {
	profile, err := m.loadProfile(ctx, u.ID)
	if err != nil {
		m.logger.Warn("profile unavailable", zap.String("user_id", u.ID), zap.Error(err))
	}
	m.signedIn(u, profile)
}

// SignOut ends the session. The state is only cleared once the provider
// confirms.
func (m *Manager) SignOut(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	if err := m.cfg.Auth.SignOut(ctx); err != nil {
		return m.fail(err)
	}
	m.set(func(s *State) { *s = State{Status: StatusUnauthenticated} })
	if m.cfg.OnSignOut != nil {
		m.cfg.OnSignOut(ctx)
	}
	return nil
}

// ResetPassword sends a password-reset email redirecting to the site's
// reset page.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := validate.Email(email); err != nil {
		return err
	}
	redirect := strings.TrimRight(m.cfg.SiteURL, "/") + ResetPath
	if err := m.cfg.Auth.ResetPassword(ctx, strings.TrimSpace(email), redirect); err != nil {
		return m.fail(err)
	}
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (m *Manager) UpdatePassword(ctx context.Context, password, confirm string) error {
	if err := validate.PasswordConfirmation(password, confirm); err != nil {
		return err
	}
	if _, err := m.cfg.Auth.UpdatePassword(ctx, password); err != nil {
		return m.fail(err)
	}
	return nil
}

// UpdateProfile patches the signed-in user's profile.
func (m *Manager) UpdateProfile(ctx context.Context, patch model.ProfileInput) (model.Profile, error) {
	uid, err := m.UserID(ctx)
	if err != nil {
		return model.Profile{}, ErrNoUser
	}
	if patch.FullName != nil {
		if err := validate.FullName(*patch.FullName); err != nil {
			return model.Profile{}, err
		}
	}
	patch.ID = nil
	p, err := m.cfg.Profiles.Update(ctx, uid, patch)
	if err != nil {
		return model.Profile{}, m.fail(err)
	}
	m.set(func(s *State) { s.Profile = &p; s.Error = "" })
	return p, nil
}

// UploadProfilePhoto stores the photo under the user's folder, overwriting
// the previous one, and returns its public URL.
func (m *Manager) UploadProfilePhoto(ctx context.Context, filename string, r io.Reader) (string, error) {
	uid, err := m.UserID(ctx)
	if err != nil {
		return "", ErrNoUser
	}
	if m.cfg.Photos == nil {
		return "", m.fail(fmt.Errorf("photo storage is not configured"))
	}
	key := blob.ProfilePhotoKey(uid, filename)
	if _, err := m.cfg.Photos.Put(ctx, key, r, blob.PutOptions{ContentType: blob.ContentType(filename), Upsert: true}); err != nil {
		return "", m.fail(fmt.Errorf("upload profile photo: %w", err))
	}
	url := m.cfg.Photos.PublicURL(key)
	if _, err := m.UpdateProfile(ctx, model.ProfileInput{PhotoURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}

// Close stops following session changes.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.cancel()
}

// loadProfile returns nil without error when the profile does not exist.
func (m *Manager) loadProfile(ctx context.Context, uid string) (*model.Profile, error) {
	res, err := m.cfg.Profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, nil
	}
	return &res.Record, nil
}

func (m *Manager) createProfile(ctx context.Context, u model.User) (*model.Profile, error) {
	name := u.UserMetadata.FullName
	if name == "" {
		name = model.DefaultProfileName
	}
	p, err := m.cfg.Profiles.Insert(ctx, model.ProfileInput{
		ID:          &u.ID,
		FullName:    &name,
		Email:       &u.Email,
		Designation: model.Ptr(""),
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("created profile", zap.String("user_id", u.ID))
	return &p, nil
}

func (m *Manager) signedIn(u model.User, p *model.Profile) {
	m.set(func(s *State) { *s = State{Status: StatusAuthenticated, User: &u, Profile: p} })
}

func (m *Manager) set(fn func(s *State)) {
	m.mu.Lock()
	fn(&m.state)
	m.mu.Unlock()
}

func (m *Manager) fail(err error) error {
	m.set(func(s *State) { s.Error = appErrors.Message(err) })
	return err
}
