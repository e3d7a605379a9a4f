package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// FakeAuth is an in-memory identity provider. Registered users sign in with
// the password they signed up with.
type FakeAuth struct {
	mu        sync.Mutex
	users     map[string]fakeUser
	session   *model.Session
	events    queue.Publisher
	calls     []string
	redirects []string

	// RequireConfirmation makes SignUp return no session.
	RequireConfirmation bool

	// Error injection for testing
	SignUpErr         error
	SignInErr         error
	SignOutErr        error
	SessionErr        error
	UpdatePasswordErr error
	ResetPasswordErr  error
}

type fakeUser struct {
	user     model.User
	password string
}

var _ repository.AuthRepositoryInterface = (*FakeAuth)(nil)

// NewFakeAuth creates an identity provider publishing session changes on
// events. events may be nil.
func NewFakeAuth(events queue.Publisher) *FakeAuth {
	return &FakeAuth{users: map[string]fakeUser{}, events: events}
}

// AddUser registers a user directly and returns it.
func (f *FakeAuth) AddUser(email, password, fullName string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(email, password, fullName)
}

func (f *FakeAuth) addLocked(email, password, fullName string) model.User {
	u := model.User{ID: uuid.NewString(), Email: email, UserMetadata: model.UserMetadata{FullName: fullName}}
	f.users[email] = fakeUser{user: u, password: password}
	return u
}

// SetSession installs a session for u without a remote call, as if it had
// been restored from disk.
func (f *FakeAuth) SetSession(u model.User) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = newSession(u)
	return f.session
}

// Calls returns the remote operations performed so far.
func (f *FakeAuth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Redirects returns the redirect URLs of password-reset requests.
func (f *FakeAuth) Redirects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.redirects...)
}

// Password returns the stored password of email.
func (f *FakeAuth) Password(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[email].password
}

func (f *FakeAuth) SignUp(_ context.Context, email, password, fullName string) (model.User, *model.Session, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "signup")
	if f.SignUpErr != nil {
		f.mu.Unlock()
		return model.User{}, nil, f.SignUpErr
	}
	if _, ok := f.users[email]; ok {
		f.mu.Unlock()
		return model.User{}, nil, &appErrors.RemoteError{Op: "sign up", Status: 422, Message: "User already registered"}
	}
	u := f.addLocked(email, password, fullName)
	if f.RequireConfirmation {
		f.mu.Unlock()
		return u, nil, nil
	}
	f.session = newSession(u)
	s := *f.session
	f.mu.Unlock()

	f.publish(repository.AuthSignedIn, &s)
	return u, &s, nil
}

func (f *FakeAuth) SignIn(_ context.Context, email, password string) (*model.Session, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "signin")
	if f.SignInErr != nil {
		f.mu.Unlock()
		return nil, f.SignInErr
	}
	u, ok := f.users[email]
	if !ok || u.password != password {
		f.mu.Unlock()
		return nil, &appErrors.RemoteError{Op: "sign in", Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	f.session = newSession(u.user)
	s := *f.session
	f.mu.Unlock()

	f.publish(repository.AuthSignedIn, &s)
	return &s, nil
}

func (f *FakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, "signout")
	if f.SignOutErr != nil {
		f.mu.Unlock()
		return f.SignOutErr
	}
	f.session = nil
	f.mu.Unlock()

	f.publish(repository.AuthSignedOut, nil)
	return nil
}

func (f *FakeAuth) Session(context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *FakeAuth) UserID(ctx context.Context) (string, error) {
	s, err := f.Session(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", appErrors.ErrNotAuthenticated
	}
	return s.User.ID, nil
}

func (f *FakeAuth) UpdatePassword(_ context.Context, password string) (model.User, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "update_password")
	if f.UpdatePasswordErr != nil {
		f.mu.Unlock()
		return model.User{}, f.UpdatePasswordErr
	}
	if f.session == nil {
		f.mu.Unlock()
		return model.User{}, appErrors.ErrNotAuthenticated
	}
	u := f.session.User
	f.users[u.Email] = fakeUser{user: u, password: password}
	s := *f.session
	f.mu.Unlock()

	f.publish(repository.AuthUserUpdated, &s)
	return u, nil
}

func (f *FakeAuth) ResetPassword(_ context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "reset_password")
	if f.ResetPasswordErr != nil {
		return f.ResetPasswordErr
	}
	f.redirects = append(f.redirects, redirectTo)
	return nil
}

func (f *FakeAuth) publish(event string, s *model.Session) {
	if f.events == nil {
		return
	}
	_ = f.events.Publish(queue.TopicAuthState, repository.AuthEvent{Event: event, Session: s})
}

func newSession(u model.User) *model.Session {
	return &model.Session{
		AccessToken:  "access-" + u.ID,
		RefreshToken: "refresh-" + u.ID,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		User:         u,
	}
}
