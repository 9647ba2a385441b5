package domain

import "errors"

// Conflict outcomes. Their messages are safe to show to the caller.
var (
	ErrUsernameTaken = errors.New("Username is already taken!")
	ErrEmailInUse    = errors.New("Email is already in use!")
)

// ErrInvalidCredentials is the single outcome for every failed login, whether
// the identifier was unknown, the password wrong or the account disabled.
var ErrInvalidCredentials = errors.New("Invalid username/email or password")

var ErrInvalidToken = errors.New("invalid or expired token")

// ErrUserNotFound is returned by stores when a lookup matches nothing.
var ErrUserNotFound = errors.New("user not found")

// ErrIdentityUnresolved means an authenticated subject no longer resolves to a
// stored user. It is a consistency failure, not a normal negative outcome.
var ErrIdentityUnresolved = errors.New("authenticated identity does not resolve to a user")

var ErrValidation = errors.New("validation failed")

// ValidationError carries a caller-facing description of rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError that matches ErrValidation.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
