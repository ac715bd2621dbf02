package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kiplya/DialogiX/internal/chat"
)

// Handler dispatches inbound events for one connection at a time.
//
// State per connection: unauthenticated connections never reach the
// event handlers; they only receive the unauthorized echo so the client
// can refresh credentials and replay the call. Internal failures are
// logged and counted but never surfaced to the caller; the unauthorized
// echo is the only error-signaling event in the protocol.
type Handler struct {
	log      *slog.Logger
	registry *Registry
	presence *Presence
	chats    chat.Store
	blocks   chat.BlockStore
	peers    chat.PeerLookup
}

// NewHandler constructs the event dispatcher.
func NewHandler(log *slog.Logger, registry *Registry, presence *Presence, chats chat.Store, blocks chat.BlockStore, peers chat.PeerLookup) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
		presence: presence,
		chats:    chats,
		blocks:   blocks,
		peers:    peers,
	}
}

// HandleEvent processes one inbound frame. It never returns an error to
// the connection; failures are swallowed after logging.
func (h *Handler) HandleEvent(ctx context.Context, c *Client, env Envelope, now time.Time) {
	if !c.Authenticated() {
		metricUnauthorized.Inc()
		h.send(c, NewEnvelope(EventUnauthorized, UnauthorizedPayload{
			Controller: env.Event,
			Args:       env.Data,
		}))
		return
	}

	metricEvents.WithLabelValues(env.Event).Inc()

	var err error
	switch env.Event {
	case EventJoinUser:
		err = h.joinUser(ctx, c)

	case EventJoinChat:
		var p RecipientPayload
		if err = h.decode(env, &p); err == nil {
			err = h.joinChat(ctx, c, p.RecipientID)
		}

	case EventLeaveChat:
		var p RecipientPayload
		if err = h.decode(env, &p); err == nil {
			h.registry.Leave(c, ChatRoom(chat.PairChatID(c.UserID, p.RecipientID)))
		}

	case EventSendMessage:
		var p SendMessagePayload
		if err = h.decode(env, &p); err == nil {
			err = h.sendMessage(ctx, now, c, p)
		}

	case EventEditMessage:
		var p EditMessagePayload
		if err = h.decode(env, &p); err == nil {
			err = h.editMessage(ctx, c, p)
		}

	case EventDeleteMessage:
		var p DeleteMessagePayload
		if err = h.decode(env, &p); err == nil {
			err = h.deleteMessage(ctx, c, p)
		}

	case EventDeleteChat:
		var p RecipientPayload
		if err = h.decode(env, &p); err == nil {
			err = h.deleteChat(ctx, c, p.RecipientID)
		}

	case EventBlockUser:
		var p RecipientPayload
		if err = h.decode(env, &p); err == nil {
			err = h.blockUser(ctx, c, p.RecipientID)
		}

	case EventUnblockUser:
		var p RecipientPayload
		if err = h.decode(env, &p); err == nil {
			err = h.blocks.Unblock(ctx, c.UserID, p.RecipientID)
		}

	default:
		h.log.Info("ws.event.unknown", "event", env.Event, "conn_id", c.ConnID)
		return
	}

	if err != nil {
		metricEventFailures.WithLabelValues(env.Event).Inc()
		h.log.Error("ws.event.fail", "event", env.Event, "conn_id", c.ConnID, "user_id", c.UserID, "err", err)
	}
}

// HandleDisconnect tears down registry state for a closing connection
// and, when its last connection goes away, marks the user offline.
func (h *Handler) HandleDisconnect(ctx context.Context, c *Client) {
	if !c.Authenticated() {
		h.registry.Drop(c)
		return
	}

	room := UserRoom(c.UserID)
	wasJoined := h.registry.InRoom(c, room)
	h.registry.Drop(c)

	if wasJoined && h.registry.RoomSize(room) == 0 {
		if err := h.presence.MarkOffline(ctx, c.UserID); err != nil {
			h.log.Error("ws.presence.offline.fail", "user_id", c.UserID, "err", err)
		}
	}
}

// ---- per-event semantics ----

func (h *Handler) joinUser(ctx context.Context, c *Client) error {
	room := UserRoom(c.UserID)
	first := h.registry.RoomSize(room) == 0
	h.registry.Join(c, room)

	if first {
		return h.presence.MarkOnline(ctx, c.UserID)
	}
	return nil
}

func (h *Handler) joinChat(ctx context.Context, c *Client, recipientID string) error {
	if recipientID == "" {
		return errors.New("missing recipientId")
	}

	chatID := chat.PairChatID(c.UserID, recipientID)
	h.registry.Join(c, ChatRoom(chatID))

	if _, err := h.chats.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			return nil
		}
		return err
	}

	// The joining user has now seen everything the peer sent.
	changed, err := h.chats.MarkRead(ctx, chatID, recipientID)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}

	h.registry.Publish(ChatRoom(chatID), NewEnvelope(EventJoinChat, changed))
	return h.publishSummaries(ctx, EventDialogsJoinChat, chatID, c.UserID, recipientID)
}

func (h *Handler) sendMessage(ctx context.Context, now time.Time, c *Client, p SendMessagePayload) error {
	if p.RecipientID == "" {
		return errors.New("missing recipientId")
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errors.New("empty text")
	}
	if len([]rune(text)) > maxMessageChars {
		return fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	blocked, err := h.blocks.IsBlockedEither(ctx, c.UserID, p.RecipientID)
	if err != nil {
		return err
	}
	if blocked {
		return errors.New("pair is blocked")
	}

	ch, err := h.chats.GetOrCreateChat(ctx, now, c.UserID, p.RecipientID)
	if err != nil {
		return err
	}

	msg, err := h.chats.AppendMessage(ctx, now, ch.ID, c.UserID, text)
	if err != nil {
		return err
	}

	// Both participants have the chat open: mark read at creation time.
	if h.registry.RoomSize(ChatRoom(ch.ID)) >= 2 {
		if _, err := h.chats.MarkRead(ctx, ch.ID, c.UserID); err != nil {
			return err
		}
		msg.IsReaded = true
	}

	h.registry.Publish(ChatRoom(ch.ID), NewEnvelope(EventReceiveMessage, msg))
	return h.publishSummaries(ctx, EventDialogsReceiveMessage, ch.ID, c.UserID, p.RecipientID)
}

func (h *Handler) editMessage(ctx context.Context, c *Client, p EditMessagePayload) error {
	if p.RecipientID == "" || p.MessageID == "" {
		return errors.New("missing recipientId or messageId")
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errors.New("empty text")
	}
	if len([]rune(text)) > maxMessageChars {
		return fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	// Scoping the edit to the caller's own pair chat id keeps foreign
	// messages out of reach regardless of what messageId is supplied.
	chatID := chat.PairChatID(c.UserID, p.RecipientID)
	if _, err := h.chats.GetChat(ctx, chatID); err != nil {
		return err
	}

	msg, err := h.chats.EditMessage(ctx, chatID, p.MessageID, text)
	if err != nil {
		return err
	}

	if h.registry.RoomSize(ChatRoom(chatID)) >= 2 {
		if _, err := h.chats.MarkRead(ctx, chatID, c.UserID); err != nil {
			return err
		}
		msg.IsReaded = true
	}

	h.registry.Publish(ChatRoom(chatID), NewEnvelope(EventEditMessage, msg))
	return h.publishSummaries(ctx, EventDialogsEditMessage, chatID, c.UserID, p.RecipientID)
}

func (h *Handler) deleteMessage(ctx context.Context, c *Client, p DeleteMessagePayload) error {
	if p.RecipientID == "" || p.MessageID == "" {
		return errors.New("missing recipientId or messageId")
	}

	chatID := chat.PairChatID(c.UserID, p.RecipientID)
	res, err := h.chats.DeleteMessage(ctx, chatID, p.MessageID)
	if err != nil {
		return err
	}

	h.registry.Publish(ChatRoom(res.ChatID), NewEnvelope(EventDeleteMessage, p.MessageID))

	if res.ChatDeleted {
		env := NewEnvelope(EventDialogsDeleteChat, res.ChatID)
		h.registry.Publish(UserRoom(c.UserID), env)
		h.registry.Publish(UserRoom(p.RecipientID), env)
		return nil
	}

	// Mid-history deletes do not move the chat in anyone's list.
	if !res.WasLatest {
		return nil
	}
	return h.publishSummaries(ctx, EventDialogsDeleteMessage, res.ChatID, c.UserID, p.RecipientID)
}

func (h *Handler) deleteChat(ctx context.Context, c *Client, recipientID string) error {
	if recipientID == "" {
		return errors.New("missing recipientId")
	}

	chatID := chat.PairChatID(c.UserID, recipientID)
	if err := h.chats.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	h.registry.Publish(ChatRoom(chatID), NewEnvelope(EventDeleteChat, nil))

	env := NewEnvelope(EventDialogsDeleteChat, chatID)
	h.registry.Publish(UserRoom(c.UserID), env)
	h.registry.Publish(UserRoom(recipientID), env)
	return nil
}

func (h *Handler) blockUser(ctx context.Context, c *Client, recipientID string) error {
	if recipientID == "" {
		return errors.New("missing recipientId")
	}

	if err := h.blocks.Block(ctx, c.UserID, recipientID); err != nil {
		return err
	}

	h.registry.Publish(ChatRoom(chat.PairChatID(c.UserID, recipientID)), NewEnvelope(EventBlockUser, nil))
	return nil
}

// ---- helpers ----

func (h *Handler) decode(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// publishSummaries refreshes the chat summary on both participants'
// private rooms. Each side sees the other as the peer.
func (h *Handler) publishSummaries(ctx context.Context, event, chatID, userA, userB string) error {
	forA, err := h.summaryFor(ctx, chatID, userB)
	if err != nil {
		return err
	}
	forB, err := h.summaryFor(ctx, chatID, userA)
	if err != nil {
		return err
	}

	h.registry.Publish(UserRoom(userA), NewEnvelope(event, forA))
	h.registry.Publish(UserRoom(userB), NewEnvelope(event, forB))
	return nil
}

// summaryFor builds the chat summary as seen by the participant whose
// peer is peerID.
func (h *Handler) summaryFor(ctx context.Context, chatID, peerID string) (chat.ChatSummary, error) {
	peer, err := h.peers.PeerByID(ctx, peerID)
	if err != nil {
		return chat.ChatSummary{}, err
	}

	page, err := h.chats.ListMessages(ctx, chatID, 1, 1)
	if err != nil {
		return chat.ChatSummary{}, err
	}
	if len(page.Messages) == 0 {
		return chat.ChatSummary{}, chat.ErrMessageNotFound
	}

	return chat.ChatSummary{
		ChatID:      chatID,
		Peer:        peer,
		LastMessage: page.Messages[0],
	}, nil
}

// send enqueues directly to one connection, dropping on backpressure.
func (h *Handler) send(c *Client, env Envelope) {
	select {
	case <-c.Done():
		return
	default:
	}

	select {
	case c.Send <- env:
	default:
	}
}
