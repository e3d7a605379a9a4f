// Package handler holds the HTTP plumbing shared by the controllers: JSON
// responses, error mapping and middleware.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/service"
	"github.com/unclebandit/aidplug-crm/internal/session"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrInvalidBody is reported when a request body cannot be decoded.
var ErrInvalidBody = appErrors.NewValidation("body", "invalid request body")

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{"error": message})
}

// Fail maps err to a status and writes it.
func Fail(w http.ResponseWriter, err error) {
	WriteError(w, StatusOf(err), appErrors.Message(err))
}

// StatusOf maps an error to an HTTP status. Anything that is not a local
// validation, a missing principal or a missing record is a backend failure.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case appErrors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrNotAuthenticated), errors.Is(err, session.ErrNoUser):
		return http.StatusUnauthorized
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// Decode reads a JSON body into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return ErrInvalidBody
	}
	return nil
}
