package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/validate"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sara@bank.ae", ""},
		{"  sara@bank.ae ", ""},
		{"", "Email is required"},
		{"sara@bank", "Please enter a valid email address"},
		{"sara bank@x.ae", "Please enter a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := validate.Email(tt.in)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, appErrors.IsValidation(err))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestPassword(t *testing.T) {
	assert.EqualError(t, validate.Password("", false), "Password is required")
	assert.NoError(t, validate.Password("abc", false))
	assert.EqualError(t, validate.Password("abcde", true), "Password must be at least 6 characters")
	assert.NoError(t, validate.Password("abcdef", true))
}

func TestPasswordConfirmation(t *testing.T) {
	assert.EqualError(t, validate.PasswordConfirmation("abcdef", "abcdeg"), "Passwords do not match")
	assert.EqualError(t, validate.PasswordConfirmation("abc", "abc"), "Password must be at least 6 characters")
	assert.NoError(t, validate.PasswordConfirmation("abcdef", "abcdef"))
}

func TestFullName(t *testing.T) {
	assert.Error(t, validate.FullName("   "))
	assert.NoError(t, validate.FullName("Sara"))
}

func TestPhone(t *testing.T) {
	for _, ok := range []string{"", "+971501234567", "+971 50 123 4567"} {
		assert.NoError(t, validate.Phone(ok), ok)
	}
	for _, bad := range []string{"0501234567", "+97150123456", "+44 20 123 4567"} {
		assert.Error(t, validate.Phone(bad), bad)
	}
}
