package services

import "errors"

var (
	// ErrValidation wraps every missing or malformed input.
	ErrValidation = errors.New("validation failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not logged in")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("email already exists")
	ErrComplaintNotFound  = errors.New("complaint not found")
	ErrSessionNotFound    = errors.New("session not found")
)
