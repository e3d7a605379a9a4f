// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Fallback is shown when an error carries no usable message.
const Fallback = "An unexpected error occurred"

// ErrNotAuthenticated is returned when an operation needs a principal and there is none.
var ErrNotAuthenticated = errors.New("User not authenticated")

// NotFoundError reports a missing record where the caller needed one.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", entityName(e.Table))
}

func NewNotFound(table, id string) error {
	return &NotFoundError{Table: table, ID: id}
}

// ValidationError is a local input check that failed before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// RemoteError is a failure reported by the record store, identity or blob backend.
type RemoteError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
	return e.Op + " failed"
}

// PartialConversionError means the target record was created but the
// follow-up change to the source record failed. Step names that change and
// defaults to "remove".
type PartialConversionError struct {
	SourceTable string
	SourceID    string
	CreatedID   string
	Step        string
	Err         error
}

func (e *PartialConversionError) Error() string {
	step := e.Step
	if step == "" {
		step = "remove"
	}
	return fmt.Sprintf("created %s but could not %s %s %s: %v",
		e.CreatedID, step, entityName(e.SourceTable), e.SourceID, e.Err)
}

func (e *PartialConversionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Message renders err for display. Typed errors give their own message,
// wrapped plain errors give the full chain.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		pc *PartialConversionError
		ve *ValidationError
		nf *NotFoundError
		re *RemoteError
	)
	switch {
	case errors.As(err, &pc):
		return pc.Error()
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &re):
		return re.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return Fallback
}

func entityName(table string) string {
	switch table {
	case "leads":
		return "Lead"
	case "clients":
		return "Client"
	case "deals":
		return "Deal"
	case "tasks":
		return "Task"
	case "profiles":
		return "Profile"
	case "":
		return "Record"
	}
	return table
}
