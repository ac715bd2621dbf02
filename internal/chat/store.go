package chat

import (
	"context"
	"time"
)

// PeerLookup resolves the identity/presence projection of a chat peer.
// The identity store satisfies it via a thin adapter at wiring time.
type PeerLookup interface {
	PeerByID(ctx context.Context, userID string) (Peer, error)
}

// Store abstracts persistence for chats, participants, and messages.
//
// Clock semantics: callers pass now explicitly so tests can control
// ordering; implementations never read the wall clock for row timestamps.
type Store interface {
	// GetOrCreateChat resolves the deterministic chat for an unordered
	// pair, creating chat + both participants as a single atomic unit if
	// absent. Partial creation must never be observable.
	GetOrCreateChat(ctx context.Context, now time.Time, userA, userB string) (Chat, error)

	// GetChat loads a chat by id, ErrChatNotFound if absent.
	GetChat(ctx context.Context, chatID string) (Chat, error)

	// AppendMessage encrypts and stores a message. ErrChatNotFound if the
	// chat does not exist. The returned message carries decrypted text.
	AppendMessage(ctx context.Context, now time.Time, chatID, senderID, text string) (Message, error)

	// EditMessage replaces a message's text, sets isEdited, and resets
	// isReaded to false. The message must live in chatID; a message that
	// is absent or belongs to another chat is ErrMessageNotFound, so a
	// caller holding only its own pair chat id cannot touch foreign
	// messages.
	EditMessage(ctx context.Context, chatID, messageID, text string) (Message, error)

	// DeleteMessage removes a message; if that empties the chat, the chat
	// is deleted as a follow-up (its existence is a derived fact).
	// Scoped to chatID the same way as EditMessage; ErrMessageNotFound
	// if absent or in another chat.
	DeleteMessage(ctx context.Context, chatID, messageID string) (DeleteMessageResult, error)

	// DeleteChat removes a chat and, transitively, its messages and
	// participants. ErrChatNotFound if absent.
	DeleteChat(ctx context.Context, chatID string) error

	// MarkRead transitions all unread messages in the chat authored by
	// forSenderID to read and returns the ids that changed. An empty
	// result is a no-op, not an error.
	MarkRead(ctx context.Context, chatID, forSenderID string) ([]string, error)

	// ListMessages pages a chat's history newest-first. page starts at 1;
	// hasMore = page*pageSize < total.
	ListMessages(ctx context.Context, chatID string, page, pageSize int) (MessagePage, error)

	// ListChatsForUser returns one summary per chat the user participates
	// in, sorted by latest message time descending, ties broken by
	// message id.
	ListChatsForUser(ctx context.Context, userID string) ([]ChatSummary, error)

	// PeerIDs returns the distinct users sharing at least one chat with
	// userID. Presence broadcasts fan out to these.
	PeerIDs(ctx context.Context, userID string) ([]string, error)

	// DeleteAllForUser removes every chat the user participates in
	// (account-deletion cascade).
	DeleteAllForUser(ctx context.Context, userID string) error
}
