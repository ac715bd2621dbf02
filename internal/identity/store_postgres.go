package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on top of the users table.
//
// Ownership model: the store does not own the pgx pool; the caller closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, email, username, password_hash, is_admin, is_online, registered_at`

// Create inserts a user row. Unique-violation errors on the email or
// username indexes map to ErrEmailTaken / ErrUsernameTaken.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, in NewUserInput) (User, error) {
	id, err := NewID(now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, is_admin, is_online, registered_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`, id, in.Email, in.Username, in.PasswordHash, in.IsAdmin, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return User{}, ErrEmailTaken
			}
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}

	return User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		IsAdmin:      in.IsAdmin,
		RegisteredAt: now,
	}, nil
}

// GetByID loads a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getBy(ctx, `WHERE id = $1`, id)
}

// GetByEmail loads a user by email (case-insensitive).
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getBy(ctx, `WHERE LOWER(email) = LOWER($1)`, email)
}

// GetByUsername loads a user by username (case-insensitive).
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.getBy(ctx, `WHERE LOWER(username) = LOWER($1)`, username)
}

func (s *PostgresStore) getBy(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.IsOnline, &u.RegisteredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// EmailExists reports whether a user with this email exists.
func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

// UsernameExists reports whether a user with this username exists.
func (s *PostgresStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE LOWER(username) = LOWER($1)`, username)
}

func (s *PostgresStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, query, arg).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SearchByUsername pages over the directory. hasMore comes from a count
// query so the remainder set is never fetched.
func (s *PostgresStore) SearchByUsername(ctx context.Context, q string, excludeIDs []string, page, limit int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE LOWER(username) LIKE $1 AND id <> ALL($2)
	`, pattern, excludeIDs).Scan(&total)
	if err != nil {
		return SearchResult{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, username, is_online FROM users
		WHERE LOWER(username) LIKE $1 AND id <> ALL($2)
		ORDER BY username ASC
		LIMIT $3 OFFSET $4
	`, pattern, excludeIDs, limit, (page-1)*limit)
	if err != nil {
		return SearchResult{}, err
	}
	defer rows.Close()

	users := make([]PublicUser, 0, limit)
	for rows.Next() {
		var u PublicUser
		if err := rows.Scan(&u.ID, &u.Username, &u.IsOnline); err != nil {
			return SearchResult{}, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Users: users, HasMore: page*limit < total}, nil
}

// UpdatePassword replaces the stored password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUsername renames a user. A unique violation on the username index
// maps to ErrUsernameTaken.
func (s *PostgresStore) UpdateUsername(ctx context.Context, id, username string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET username = $2 WHERE id = $1`, id, username)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetOnline transitions the persisted isOnline flag.
func (s *PostgresStore) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET is_online = $2 WHERE id = $1`, id, online)
	return err
}

// Delete removes a user. Sessions, participants, messages, and block
// relationships cascade via foreign keys.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
