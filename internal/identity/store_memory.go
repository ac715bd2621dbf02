package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when no database is configured
// and by unit tests. It mirrors the Postgres store's semantics, including
// case-insensitive uniqueness.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User // id -> user
}

// NewMemoryStore constructs an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

// Create inserts a user, enforcing unique email and username.
func (s *MemoryStore) Create(ctx context.Context, now time.Time, in NewUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) {
			return User{}, ErrEmailTaken
		}
		if strings.EqualFold(u.Username, in.Username) {
			return User{}, ErrUsernameTaken
		}
	}

	id, err := NewID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		IsAdmin:      in.IsAdmin,
		RegisteredAt: now,
	}
	s.users[id] = u
	return u, nil
}

// GetByID loads a user by id.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// GetByEmail loads a user by email (case-insensitive).
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// GetByUsername loads a user by username (case-insensitive).
func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// EmailExists reports whether a user with this email exists.
func (s *MemoryStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

// UsernameExists reports whether a user with this username exists.
func (s *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.GetByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

// SearchByUsername pages over users whose username contains q.
func (s *MemoryStore) SearchByUsername(ctx context.Context, q string, excludeIDs []string, page, limit int) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	needle := strings.ToLower(strings.TrimSpace(q))
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	matched := make([]PublicUser, 0, 16)
	for _, u := range s.users {
		if _, skip := excluded[u.ID]; skip {
			continue
		}
		if !strings.Contains(strings.ToLower(u.Username), needle) {
			continue
		}
		matched = append(matched, PublicUser{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline})
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return SearchResult{
		Users:   matched[start:end],
		HasMore: page*limit < total,
	}, nil
}

// UpdatePassword replaces the stored password hash.
func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

// UpdateUsername renames a user, enforcing case-insensitive uniqueness.
func (s *MemoryStore) UpdateUsername(ctx context.Context, id, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	for _, other := range s.users {
		if other.ID != id && strings.EqualFold(other.Username, username) {
			return ErrUsernameTaken
		}
	}
	u.Username = username
	s.users[id] = u
	return nil
}

// SetOnline transitions the persisted isOnline flag.
func (s *MemoryStore) SetOnline(ctx context.Context, id string, online bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsOnline = online
	s.users[id] = u
	return nil
}

// Delete removes a user. Cascades to other stores are the caller's concern
// for the memory backend (Postgres handles them with ON DELETE CASCADE).
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	return nil
}
