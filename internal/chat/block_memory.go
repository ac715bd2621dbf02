package chat

import (
	"context"
	"sync"
)

// MemoryBlockStore is an in-memory BlockStore for tests and DB-less runs.
type MemoryBlockStore struct {
	mu    sync.RWMutex
	edges map[[2]string]struct{} // [blocker, blocked]
}

// NewMemoryBlockStore constructs an empty in-memory block store.
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{edges: make(map[[2]string]struct{})}
}

// Block records blocker -> blocked.
func (s *MemoryBlockStore) Block(ctx context.Context, blockerID, blockedID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[[2]string{blockerID, blockedID}] = struct{}{}
	return nil
}

// Unblock removes blocker -> blocked.
func (s *MemoryBlockStore) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, [2]string{blockerID, blockedID})
	return nil
}

// IsBlockedEither reports whether an edge exists in either direction.
func (s *MemoryBlockStore) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.edges[[2]string{userA, userB}]; ok {
		return true, nil
	}
	_, ok := s.edges[[2]string{userB, userA}]
	return ok, nil
}

// DeleteAllForUser removes every edge the user appears in.
func (s *MemoryBlockStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for edge := range s.edges {
		if edge[0] == userID || edge[1] == userID {
			delete(s.edges, edge)
		}
	}
	return nil
}
