package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing input fields.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateIdentity indicates a username or email collision.
	ErrDuplicateIdentity = errors.New("username or email already in use")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailNotConfirmed is returned on login before the email is confirmed.
	ErrEmailNotConfirmed = errors.New("email must be confirmed before logging in")
	// ErrUnauthenticated indicates a missing, malformed or expired session token.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the caller's role is not allowed.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOrExpiredToken covers unknown, consumed and expired opaque tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrAccountNotEligible is returned when a password reset cannot be issued.
	ErrAccountNotEligible = errors.New("account not eligible")
	// ErrConflict is returned when concurrent writers kept colliding.
	ErrConflict = errors.New("resource was modified concurrently, retry the request")
)

// ValidationErrors maps a field path to a human readable message.
type ValidationErrors map[string]string

// Add records a message for field, keeping the first one reported.
func (v ValidationErrors) Add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

// Err returns nil when no field failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for field errors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateError names the unique field that collided.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return ErrDuplicateIdentity.Error()
	}
	return e.Field + " already in use"
}

// Is makes errors.Is(err, ErrDuplicateIdentity) hold.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

// UserSafeMessage returns a message that may be shown to API callers.
func UserSafeMessage(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Error()
	}
	for _, known := range []error{
		ErrValidation,
		ErrDuplicateIdentity,
		ErrInvalidCredentials,
		ErrEmailNotConfirmed,
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrInvalidOrExpiredToken,
		ErrAccountNotEligible,
		ErrConflict,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}
