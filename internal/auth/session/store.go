// Package session implements the rotating-credential session lifecycle
// shared by the HTTP API and the websocket layer: token issuance, refresh
// rotation, uniform authorization, and revocation.
package session

import (
	"context"
	"time"
)

// Row is a persisted session record. One row per active login; the row id
// equals the jti of the refresh token bound to it, so lookups never
// compare secrets.
type Row struct {
	ID                string
	UserID            string
	DeviceFingerprint string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Store abstracts persistence for session rows (the credential store).
//
// Delete and DeleteAllForUser are idempotent: deleting an absent row is
// not an error.
type Store interface {
	Create(ctx context.Context, row Row) error
	GetByID(ctx context.Context, sessionID string) (Row, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes rows past their expiry and returns how many
	// were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
