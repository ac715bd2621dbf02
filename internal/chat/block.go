package chat

import "context"

// BlockStore records directed block relationships between user pairs.
// An edge in either direction disables new sends between the pair but
// never deletes history. Enforcement lives in the protocol handler.
type BlockStore interface {
	// Block records blocker -> blocked (idempotent per ordered pair).
	Block(ctx context.Context, blockerID, blockedID string) error

	// Unblock removes blocker -> blocked (idempotent).
	Unblock(ctx context.Context, blockerID, blockedID string) error

	// IsBlockedEither reports whether an edge exists in either direction
	// between the two users.
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)

	// DeleteAllForUser removes every edge the user appears in
	// (account-deletion cascade).
	DeleteAllForUser(ctx context.Context, userID string) error
}
