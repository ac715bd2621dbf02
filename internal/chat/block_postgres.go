package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBlockStore implements BlockStore on the block_relationships table.
type PostgresBlockStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBlockStore creates a Postgres-backed block store.
func NewPostgresBlockStore(pool *pgxpool.Pool) *PostgresBlockStore {
	return &PostgresBlockStore{pool: pool}
}

// Block records blocker -> blocked (idempotent via ON CONFLICT).
func (s *PostgresBlockStore) Block(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_relationships (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`, blockerID, blockedID)
	return err
}

// Unblock removes blocker -> blocked (idempotent).
func (s *PostgresBlockStore) Unblock(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM block_relationships WHERE blocker_id = $1 AND blocked_id = $2
	`, blockerID, blockedID)
	return err
}

// IsBlockedEither reports whether an edge exists in either direction.
func (s *PostgresBlockStore) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM block_relationships
		WHERE (blocker_id = $1 AND blocked_id = $2)
		   OR (blocker_id = $2 AND blocked_id = $1)
		LIMIT 1
	`, userA, userB).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAllForUser removes every edge the user appears in.
func (s *PostgresBlockStore) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM block_relationships WHERE blocker_id = $1 OR blocked_id = $1
	`, userID)
	return err
}
