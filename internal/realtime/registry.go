package realtime

import (
	"log/slog"
	"sync"
)

// UserRoom is the private per-user channel for cross-chat notifications.
func UserRoom(userID string) string { return "user_" + userID }

// ChatRoom is the shared channel for a specific chat's live events.
func ChatRoom(chatID string) string { return "chat_" + chatID }

// Registry is the single ownership boundary for connection and room
// bookkeeping. All state is process-local and mutex-guarded; nothing
// here is persisted.
type Registry struct {
	log *slog.Logger

	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes a connection to a room.
func (r *Registry) Join(c *Client, room string) {
	if c == nil || room == "" {
		return
	}

	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := r.clientRooms[c]
	if !ok {
		joined = make(map[string]struct{})
		r.clientRooms[c] = joined
	}
	joined[room] = struct{}{}
	r.mu.Unlock()

	r.log.Debug("registry.join", "room", room, "conn_id", c.ConnID)
}

// Leave unsubscribes a connection from a room.
func (r *Registry) Leave(c *Client, room string) {
	if c == nil || room == "" {
		return
	}

	r.mu.Lock()
	r.leaveLocked(c, room)
	r.mu.Unlock()

	r.log.Debug("registry.leave", "room", room, "conn_id", c.ConnID)
}

// Drop removes a connection from every room it joined. It is the
// disconnect path; callers inspect membership before dropping.
func (r *Registry) Drop(c *Client) {
	if c == nil {
		return
	}

	r.mu.Lock()
	for room := range r.clientRooms[c] {
		r.leaveLocked(c, room)
	}
	delete(r.clientRooms, c)
	r.mu.Unlock()
}

func (r *Registry) leaveLocked(c *Client, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.clientRooms[c]; ok {
		delete(joined, room)
	}
}

// InRoom reports whether the connection is subscribed to the room.
func (r *Registry) InRoom(c *Client, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined, ok := r.clientRooms[c]
	if !ok {
		return false
	}
	_, ok = joined[room]
	return ok
}

// RoomSize returns the number of connections subscribed to the room.
// For chat rooms it doubles as the liveness signal behind the
// "both participants present" read heuristic.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Publish fanouts an envelope to every connection in the room.
// Non-blocking: if a member queue is full or the client is shutting
// down, the frame is dropped for that member.
func (r *Registry) Publish(room string, env Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[room] {
		select {
		case <-c.Done():
			continue
		default:
		}

		select {
		case c.Send <- env:
		default:
			// Drop rather than block the whole room.
		}
	}
}
