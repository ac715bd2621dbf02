// Package identity owns user records: registration, lookup, directory
// search, and the live isOnline flag mutated by the presence layer.
package identity

import (
	"context"
	"time"
)

// User is the persisted identity record.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	IsAdmin      bool
	IsOnline     bool
	RegisteredAt time.Time
}

// PublicUser is the directory-facing projection of a user.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

// SearchResult is one page of a username directory search.
type SearchResult struct {
	Users   []PublicUser `json:"users"`
	HasMore bool         `json:"hasMore"`
}

// NewUserInput carries the fields required to create a user.
type NewUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// Store abstracts persistence for user records.
//
// Username and email uniqueness is case-insensitive. Delete cascades to
// sessions, chats, and block relationships at the schema level.
type Store interface {
	Create(ctx context.Context, now time.Time, in NewUserInput) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// SearchByUsername returns users whose username contains q
	// (case-insensitive), excluding every id in excludeIDs. Callers pass
	// themselves plus the peers they already chat with, so the directory
	// only surfaces new people. hasMore is computed from a count query,
	// not by fetching the remainder set.
	SearchByUsername(ctx context.Context, q string, excludeIDs []string, page, limit int) (SearchResult, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateUsername renames a user. Uniqueness is case-insensitive.
	UpdateUsername(ctx context.Context, id, username string) error

	// SetOnline transitions the persisted isOnline flag. Only the presence
	// layer calls this.
	SetOnline(ctx context.Context, id string, online bool) error

	Delete(ctx context.Context, id string) error
}
