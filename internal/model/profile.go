// internal/model/profile.go
package model

import "time"

// DefaultProfileName is used when the identity metadata carries no full name.
const DefaultProfileName = "New User"

type Profile struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Designation *string   `db:"designation" json:"designation,omitempty"`
	Email       string    `db:"email" json:"email"`
	PhotoURL    *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// A profile is keyed and owned by the principal id.
func (p Profile) RecordID() string { return p.ID }
func (p Profile) OwnerID() string  { return p.ID }

type ProfileInput struct {
	ID          *string `json:"id,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Designation *string `json:"designation,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}

// User is the identity provider's view of a principal.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

// Session is an authenticated identity with its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
	User         User      `json:"user"`
	Expiry       time.Time `json:"-"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
