package repository

import (
	"context"

	"github.com/unclebandit/aidplug-crm/internal/model"
)

// Session-change event names published on the auth state topic.
const (
	AuthSignedIn       = "SIGNED_IN"
	AuthSignedOut      = "SIGNED_OUT"
	AuthTokenRefreshed = "TOKEN_REFRESHED"
	AuthUserUpdated    = "USER_UPDATED"
)

// AuthEvent is a session-change notification. Session is nil after sign-out.
type AuthEvent struct {
	Event   string
	Session *model.Session
}

// AuthRepositoryInterface is the identity provider.
type AuthRepositoryInterface interface {
	PrincipalInterface

	// SignUp registers a user. The session is nil when the provider
	// requires email confirmation first.
	SignUp(ctx context.Context, email, password, fullName string) (model.User, *model.Session, error)

	SignIn(ctx context.Context, email, password string) (*model.Session, error)

	// SignOut ends the remote session and forgets the local one.
	SignOut(ctx context.Context) error

	// Session returns the current session, refreshing it when expired.
	// It returns nil without error when nobody is signed in.
	Session(ctx context.Context) (*model.Session, error)

	// UpdatePassword changes the signed-in user's password.
	UpdatePassword(ctx context.Context, password string) (model.User, error)

	// ResetPassword sends a password-reset email linking to redirectTo.
	ResetPassword(ctx context.Context, email, redirectTo string) error
}
