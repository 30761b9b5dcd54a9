package service

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Handlers translate these to
// HTTP statuses; services never touch status codes themselves.
var (
	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a unique pair (favorite, cart item,
	// subscription) was inserted twice.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotOwner means a user tried to modify somebody else's recipe.
	ErrNotOwner = errors.New("not the owner")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a malformed, missing or duplicate input value
// for a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
