// Package validate holds the local input checks run before any remote call.
package validate

import (
	"regexp"
	"strings"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// UAE numbers, e.g. +971 50 123 4567.
	phoneRe = regexp.MustCompile(`^\+971\s?\d{2}\s?\d{3}\s?\d{4}$`)
)

// Email requires a non-blank, well-formed address.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return appErrors.NewValidation("email", "Email is required")
	}
	if !emailRe.MatchString(email) {
		return appErrors.NewValidation("email", "Please enter a valid email address")
	}
	return nil
}

// Password requires a password; when checkLength is set it must also be at
// least MinPasswordLength characters. Sign-in skips the length check.
func Password(password string, checkLength bool) error {
	if password == "" {
		return appErrors.NewValidation("password", "Password is required")
	}
	if checkLength && len([]rune(password)) < MinPasswordLength {
		return appErrors.NewValidation("password", "Password must be at least 6 characters")
	}
	return nil
}

// PasswordConfirmation checks a new password and its confirmation.
func PasswordConfirmation(password, confirm string) error {
	if err := Password(password, true); err != nil {
		return err
	}
	if password != confirm {
		return appErrors.NewValidation("confirm_password", "Passwords do not match")
	}
	return nil
}

// FullName requires a non-blank name.
func FullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return appErrors.NewValidation("full_name", "Full name is required")
	}
	return nil
}

// Phone accepts an empty value or a UAE number.
func Phone(phone string) error {
	if phone == "" || phoneRe.MatchString(phone) {
		return nil
	}
	return appErrors.NewValidation("phone", "Please enter a valid UAE phone number (+971 XX XXX XXXX)")
}
