package session

import "errors"

var (
	// ErrInvalidToken is returned when a token fails signature, claim, or
	// expiry verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned by stores when no row matches the
	// given session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when a refresh token's backing session
	// row no longer exists. Row existence is the sole source of truth for
	// refresh validity, regardless of the token's cryptographic window.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrDeviceMismatch is returned when the stored device fingerprint
	// differs from the one presented (anti-replay across devices).
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")

	// ErrUserGone is returned when a session's owning user was deleted.
	ErrUserGone = errors.New("user no longer exists")

	// ErrUnauthorized is the uniform access-authorization failure. Every
	// Authorize failure mode collapses to it so callers cannot learn which
	// check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
