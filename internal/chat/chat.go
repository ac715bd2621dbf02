// Package chat implements persistence for two-party chats, their messages,
// and block relationships. Message text is encrypted at rest with a
// server-held symmetric key and decrypted on read.
//
// Blocking is deliberately not enforced here: the store has no opinion on
// block state. The protocol handler consults the BlockStore before
// mutating.
package chat

import (
	"strings"
	"time"
)

// Chat is a durable two-party conversation. Its id is deterministically
// derived from the sorted participant pair, so creation is idempotent and
// collision-free for any unordered pair.
type Chat struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a chat message. Text is stored encrypted; every value of this
// type that leaves the store carries decrypted text.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	IsEdited  bool      `json:"isEdited"`
	IsReaded  bool      `json:"isReaded"`
	CreatedAt time.Time `json:"createdAt"`
}

// Peer is the other participant of a chat as shown in summaries.
type Peer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

// ChatSummary is one row of a user's chat list: the chat, the other
// participant, and the latest message.
type ChatSummary struct {
	ChatID      string  `json:"chatId"`
	Peer        Peer    `json:"user"`
	LastMessage Message `json:"lastMessage"`
}

// MessagePage is one page of a chat's history, newest-first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// DeleteMessageResult reports the side effects of a message deletion.
type DeleteMessageResult struct {
	ChatID string
	// WasLatest is true when the deleted message was the chat's latest at
	// deletion time, captured before the delete.
	WasLatest bool
	// ChatDeleted is true when the deletion emptied the chat and the chat
	// row was removed as a follow-up.
	ChatDeleted bool
}

// PairChatID derives the chat id for an unordered user pair: the two ids
// sorted lexicographically, joined with an underscore. The same derivation
// names the chat's broadcast room, so room names are deterministic per pair.
func PairChatID(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
