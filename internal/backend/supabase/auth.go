package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// Auth is the GoTrue identity client. It keeps the current session,
// persists it through a SessionStore and refreshes expired access tokens.
type Auth struct {
	c      *Client
	store  SessionStore
	events queue.Publisher
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	loaded  bool
	session *model.Session
	tokens  oauth2.TokenSource
}

var _ repository.AuthRepositoryInterface = (*Auth)(nil)

// NewAuth creates the identity client. store and events may be nil.
func NewAuth(c *Client, store SessionStore, events queue.Publisher, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Auth{c: c, store: store, events: events, logger: logger, now: time.Now}
	c.UseTokenSource(authTokenSource{a})
	return a
}

// sessionResponse is what GoTrue returns for token grants and sign-up.
type sessionResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int        `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         model.User `json:"user"`
}

func (a *Auth) toSession(r sessionResponse) *model.Session {
	s := &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		ExpiresAt:    r.ExpiresAt,
		User:         r.User,
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = a.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.ExpiresAt > 0 {
		s.Expiry = time.Unix(s.ExpiresAt, 0)
	}
	return s
}

func (a *Auth) SignUp(ctx context.Context, email, password, fullName string) (model.User, *model.Session, error) {
	resp, err := a.c.do(ctx, request{
		op:     "sign up",
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]any{"full_name": fullName},
		},
	})
	if err != nil {
		return model.User{}, nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &fields); err != nil {
		return model.User{}, nil, fmt.Errorf("sign up: decode: %w", err)
	}
	if _, ok := fields["access_token"]; !ok {
		// Email confirmation pending: the body is the bare user.
		var u model.User
		if err := json.Unmarshal(resp.body, &u); err != nil {
			return model.User{}, nil, fmt.Errorf("sign up: decode: %w", err)
		}
		return u, nil, nil
	}

	var sr sessionResponse
	if err := json.Unmarshal(resp.body, &sr); err != nil {
		return model.User{}, nil, fmt.Errorf("sign up: decode: %w", err)
	}
	s := a.toSession(sr)
	a.setSession(s, repository.AuthSignedIn)
	return s.User, s, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	s, err := a.grant(ctx, "sign in", "password", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	a.setSession(s, repository.AuthSignedIn)
	return s, nil
}

func (a *Auth) grant(ctx context.Context, op, grantType string, body map[string]any) (*model.Session, error) {
	resp, err := a.c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
		// Token grants run inside the refresher; they must not consult the token source.
		bearer: a.c.anonKey,
	})
	if err != nil {
		return nil, err
	}
	var sr sessionResponse
	if err := json.Unmarshal(resp.body, &sr); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return a.toSession(sr), nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	s, err := a.Session(ctx)
	if err != nil {
		a.logger.Warn("session unavailable on sign out", zap.Error(err))
	}
	if s != nil {
		if _, err := a.c.do(ctx, request{
			op:     "sign out",
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			bearer: s.AccessToken,
		}); err != nil {
			return err
		}
	}
	a.setSession(nil, repository.AuthSignedOut)
	return nil
}

// Session returns the current session, loading a persisted one on first use
// and refreshing it when the access token has expired.
func (a *Auth) Session(ctx context.Context) (*model.Session, error) {
	a.mu.Lock()
	a.loadLocked()
	ts := a.tokens
	a.mu.Unlock()

	if ts == nil {
		return nil, nil
	}
	if _, err := ts.Token(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, nil
	}
	s := *a.session
	return &s, nil
}

func (a *Auth) UserID(ctx context.Context) (string, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", appErrors.ErrNotAuthenticated
	}
	return s.User.ID, nil
}

func (a *Auth) UpdatePassword(ctx context.Context, password string) (model.User, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return model.User{}, err
	}
	if s == nil {
		return model.User{}, appErrors.ErrNotAuthenticated
	}
	resp, err := a.c.do(ctx, request{
		op:     "update user",
		method: http.MethodPut,
		path:   "/auth/v1/user",
		body:   map[string]any{"password": password},
		bearer: s.AccessToken,
	})
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	if err := json.Unmarshal(resp.body, &u); err != nil {
		return model.User{}, fmt.Errorf("update user: decode: %w", err)
	}

	a.mu.Lock()
	if a.session != nil {
		a.session.User = u
	}
	updated := a.snapshotLocked()
	a.mu.Unlock()
	a.persist(updated)
	a.publish(repository.AuthUserUpdated, updated)
	return u, nil
}

func (a *Auth) ResetPassword(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	_, err := a.c.do(ctx, request{
		op:     "reset password",
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]any{"email": email},
	})
	return err
}

func (a *Auth) setSession(s *model.Session, event string) {
	a.mu.Lock()
	a.loaded = true
	a.installLocked(s)
	a.mu.Unlock()

	a.persist(s)
	a.publish(event, s)
}

func (a *Auth) loadLocked() {
	if a.loaded {
		return
	}
	a.loaded = true
	if a.store == nil {
		return
	}
	s, err := a.store.Load()
	if err != nil {
		a.logger.Warn("failed to load persisted session", zap.Error(err))
		return
	}
	a.installLocked(s)
}

func (a *Auth) installLocked(s *model.Session) {
	a.session = s
	if s == nil {
		a.tokens = nil
		return
	}
	if s.Expiry.IsZero() && s.ExpiresAt > 0 {
		s.Expiry = time.Unix(s.ExpiresAt, 0)
	}
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}
	a.tokens = oauth2.ReuseTokenSource(tok, refresher{a})
}

func (a *Auth) snapshotLocked() *model.Session {
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

func (a *Auth) persist(s *model.Session) {
	if a.store == nil {
		return
	}
	var err error
	if s == nil {
		err = a.store.Clear()
	} else {
		err = a.store.Save(s)
	}
	if err != nil {
		a.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (a *Auth) publish(event string, s *model.Session) {
	if a.events == nil {
		return
	}
	err := a.events.Publish(queue.TopicAuthState, repository.AuthEvent{Event: event, Session: s})
	if err != nil && !errors.Is(err, queue.ErrNoSubscribers) {
		a.logger.Warn("failed to publish auth event", zap.String("event", event), zap.Error(err))
	}
}

// refresher exchanges a refresh token for a new session. It is only called
// by the ReuseTokenSource once the cached access token has expired.
type refresher struct{ a *Auth }

func (r refresher) Token() (*oauth2.Token, error) {
	r.a.mu.Lock()
	var refreshToken string
	if r.a.session != nil {
		refreshToken = r.a.session.RefreshToken
	}
	r.a.mu.Unlock()
	if refreshToken == "" {
		return nil, errors.New("session expired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.a.c.timeout)
	defer cancel()

	s, err := r.a.grant(ctx, "refresh session", "refresh_token", map[string]any{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	r.a.mu.Lock()
	// Keep the ReuseTokenSource in place; only the session data changes.
	r.a.session = s
	r.a.mu.Unlock()
	r.a.persist(s)
	r.a.publish(repository.AuthTokenRefreshed, s)

	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}, nil
}

// authTokenSource feeds the current access token to table and storage calls.
type authTokenSource struct{ a *Auth }

func (t authTokenSource) Token() (*oauth2.Token, error) {
	t.a.mu.Lock()
	t.a.loadLocked()
	ts := t.a.tokens
	t.a.mu.Unlock()
	if ts == nil {
		return nil, errNoSession
	}
	return ts.Token()
}
