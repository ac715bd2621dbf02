package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kiplya/DialogiX/internal/identity"
)

// MemoryStore is an in-memory Store used when no database is configured
// and by unit tests. Message text is held encrypted, mirroring the
// Postgres store's at-rest contract.
type MemoryStore struct {
	crypter *Crypter
	peers   PeerLookup

	mu       sync.RWMutex
	chats    map[string]*memChat
	msgIndex map[string]string // message id -> chat id
}

type memChat struct {
	chat         Chat
	participants [2]string
	msgs         []Message // text encrypted; ordered by insertion
}

// NewMemoryStore constructs an in-memory chat store.
func NewMemoryStore(crypter *Crypter, peers PeerLookup) *MemoryStore {
	return &MemoryStore{
		crypter:  crypter,
		peers:    peers,
		chats:    make(map[string]*memChat),
		msgIndex: make(map[string]string),
	}
}

// GetOrCreateChat resolves or atomically creates the chat for a pair.
func (s *MemoryStore) GetOrCreateChat(ctx context.Context, now time.Time, userA, userB string) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	id := PairChatID(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.chats[id]; ok {
		return c.chat, nil
	}

	c := &memChat{
		chat:         Chat{ID: id, CreatedAt: now},
		participants: [2]string{userA, userB},
	}
	s.chats[id] = c
	return c.chat, nil
}

// GetChat loads a chat by id.
func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return Chat{}, ErrChatNotFound
	}
	return c.chat, nil
}

// AppendMessage encrypts and stores a message.
func (s *MemoryStore) AppendMessage(ctx context.Context, now time.Time, chatID, senderID, text string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	sealed, err := s.crypter.Encrypt(text)
	if err != nil {
		return Message{}, err
	}
	id, err := identity.NewID(now)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return Message{}, ErrChatNotFound
	}

	stored := Message{
		ID:        id,
		ChatID:    chatID,
		UserID:    senderID,
		Text:      sealed,
		CreatedAt: now,
	}
	c.msgs = append(c.msgs, stored)
	s.msgIndex[id] = chatID

	out := stored
	out.Text = text
	return out, nil
}

// EditMessage replaces text, sets isEdited, resets isReaded. Scoped to
// chatID: a message in another chat reads as not found.
func (s *MemoryStore) EditMessage(ctx context.Context, chatID, messageID, text string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	sealed, err := s.crypter.Encrypt(text)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, ok := s.locateLocked(chatID, messageID)
	if !ok {
		return Message{}, ErrMessageNotFound
	}

	c.msgs[i].Text = sealed
	c.msgs[i].IsEdited = true
	c.msgs[i].IsReaded = false

	out := c.msgs[i]
	out.Text = text
	return out, nil
}

// DeleteMessage removes a message and the chat too when it was the last.
func (s *MemoryStore) DeleteMessage(ctx context.Context, chatID, messageID string) (DeleteMessageResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteMessageResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, ok := s.locateLocked(chatID, messageID)
	if !ok {
		return DeleteMessageResult{}, ErrMessageNotFound
	}

	res := DeleteMessageResult{
		ChatID:    c.chat.ID,
		WasLatest: latestLocked(c).ID == messageID,
	}

	c.msgs = append(c.msgs[:i], c.msgs[i+1:]...)
	delete(s.msgIndex, messageID)

	if len(c.msgs) == 0 {
		delete(s.chats, c.chat.ID)
		res.ChatDeleted = true
	}
	return res, nil
}

// DeleteChat removes a chat and all of its messages.
func (s *MemoryStore) DeleteChat(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for _, m := range c.msgs {
		delete(s.msgIndex, m.ID)
	}
	delete(s.chats, chatID)
	return nil
}

// MarkRead transitions unread messages authored by forSenderID.
func (s *MemoryStore) MarkRead(ctx context.Context, chatID, forSenderID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil, nil
	}

	var changed []string
	for i := range c.msgs {
		if c.msgs[i].UserID == forSenderID && !c.msgs[i].IsReaded {
			c.msgs[i].IsReaded = true
			changed = append(changed, c.msgs[i].ID)
		}
	}
	return changed, nil
}

// ListMessages pages history newest-first.
func (s *MemoryStore) ListMessages(ctx context.Context, chatID string, page, pageSize int) (MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return MessagePage{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	s.mu.RLock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.RUnlock()
		return MessagePage{}, ErrChatNotFound
	}
	snap := append([]Message(nil), c.msgs...)
	s.mu.RUnlock()

	sortNewestFirst(snap)

	total := len(snap)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]Message, 0, end-start)
	for _, m := range snap[start:end] {
		plain, err := s.crypter.Decrypt(m.Text)
		if err != nil {
			return MessagePage{}, err
		}
		m.Text = plain
		out = append(out, m)
	}

	return MessagePage{Messages: out, HasMore: page*pageSize < total}, nil
}

// ListChatsForUser returns summaries sorted by latest message desc.
func (s *MemoryStore) ListChatsForUser(ctx context.Context, userID string) ([]ChatSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type row struct {
		chatID string
		peerID string
		last   Message
	}
	rows := make([]row, 0, 8)
	for _, c := range s.chats {
		peer, ok := otherParticipant(c, userID)
		if !ok || len(c.msgs) == 0 {
			continue
		}
		rows = append(rows, row{chatID: c.chat.ID, peerID: peer, last: latestLocked(c)})
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].last.CreatedAt.Equal(rows[j].last.CreatedAt) {
			return rows[i].last.CreatedAt.After(rows[j].last.CreatedAt)
		}
		return rows[i].last.ID > rows[j].last.ID
	})

	out := make([]ChatSummary, 0, len(rows))
	for _, r := range rows {
		peer, err := s.peers.PeerByID(ctx, r.peerID)
		if err != nil {
			return nil, err
		}
		plain, err := s.crypter.Decrypt(r.last.Text)
		if err != nil {
			return nil, err
		}
		r.last.Text = plain
		out = append(out, ChatSummary{ChatID: r.chatID, Peer: peer, LastMessage: r.last})
	}
	return out, nil
}

// PeerIDs returns the distinct users sharing a chat with userID.
func (s *MemoryStore) PeerIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.chats {
		if peer, ok := otherParticipant(c, userID); ok {
			if _, dup := seen[peer]; !dup {
				seen[peer] = struct{}{}
				out = append(out, peer)
			}
		}
	}
	return out, nil
}

// DeleteAllForUser removes every chat the user participates in.
func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.chats {
		if _, ok := otherParticipant(c, userID); !ok {
			continue
		}
		for _, m := range c.msgs {
			delete(s.msgIndex, m.ID)
		}
		delete(s.chats, id)
	}
	return nil
}

// locateLocked resolves a message within chatID only; a hit in a
// different chat is treated as absent.
func (s *MemoryStore) locateLocked(chatID, messageID string) (*memChat, int, bool) {
	owner, ok := s.msgIndex[messageID]
	if !ok || owner != chatID {
		return nil, 0, false
	}
	c, ok := s.chats[chatID]
	if !ok {
		return nil, 0, false
	}
	for i := range c.msgs {
		if c.msgs[i].ID == messageID {
			return c, i, true
		}
	}
	return nil, 0, false
}

// otherParticipant returns the peer of userID in c, or false when userID
// is not a participant at all.
func otherParticipant(c *memChat, userID string) (string, bool) {
	switch userID {
	case c.participants[0]:
		return c.participants[1], true
	case c.participants[1]:
		return c.participants[0], true
	default:
		return "", false
	}
}

// latestLocked returns the chat's newest message by (createdAt, id).
// Callers must hold the store lock and ensure the chat is non-empty.
func latestLocked(c *memChat) Message {
	latest := c.msgs[0]
	for _, m := range c.msgs[1:] {
		if m.CreatedAt.After(latest.CreatedAt) ||
			(m.CreatedAt.Equal(latest.CreatedAt) && m.ID > latest.ID) {
			latest = m
		}
	}
	return latest
}

func sortNewestFirst(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
}
