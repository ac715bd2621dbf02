package identity

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the given lookup key.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = errors.New("email already exists")

	// ErrUsernameTaken is returned when registration hits an existing username
	// (usernames are unique case-insensitively).
	ErrUsernameTaken = errors.New("username already exists")
)
