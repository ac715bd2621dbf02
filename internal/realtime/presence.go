package realtime

import (
	"context"
	"fmt"
	"log/slog"
)

// OnlineStore persists the user's isOnline flag.
type OnlineStore interface {
	SetOnline(ctx context.Context, id string, online bool) error
}

// PeerSource resolves the users sharing at least one chat with a user.
type PeerSource interface {
	PeerIDs(ctx context.Context, userID string) ([]string, error)
}

// Presence transitions a user's persisted online flag and notifies
// every shared-chat peer on their private rooms.
type Presence struct {
	log      *slog.Logger
	registry *Registry
	users    OnlineStore
	peers    PeerSource
}

// NewPresence constructs the presence component.
func NewPresence(log *slog.Logger, registry *Registry, users OnlineStore, peers PeerSource) *Presence {
	return &Presence{log: log, registry: registry, users: users, peers: peers}
}

// MarkOnline flips the persisted flag and broadcasts user_online.
func (p *Presence) MarkOnline(ctx context.Context, userID string) error {
	return p.transition(ctx, userID, true)
}

// MarkOffline flips the persisted flag and broadcasts user_offline.
func (p *Presence) MarkOffline(ctx context.Context, userID string) error {
	return p.transition(ctx, userID, false)
}

func (p *Presence) transition(ctx context.Context, userID string, online bool) error {
	if err := p.users.SetOnline(ctx, userID, online); err != nil {
		return fmt.Errorf("set online=%v: %w", online, err)
	}

	peers, err := p.peers.PeerIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve peers: %w", err)
	}

	event := EventUserOnline
	if !online {
		event = EventUserOffline
	}
	env := NewEnvelope(event, userID)
	for _, peer := range peers {
		p.registry.Publish(UserRoom(peer), env)
	}

	p.log.Debug("presence.transition", "user_id", userID, "online", online, "peers", len(peers))
	return nil
}
