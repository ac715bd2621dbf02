package realtime

import (
	"encoding/json"
	"errors"
	"strings"
)

// Envelope is the wire frame for every event in both directions:
// a name plus an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names. The set is closed: anything else is dropped.
const (
	// EventAuth carries the access token as the first frame after the
	// upgrade. The gateway consumes it; it never reaches the handler.
	EventAuth = "auth"

	EventJoinUser      = "join_user"
	EventJoinChat      = "join_chat"
	EventLeaveChat     = "leave_chat"
	EventSendMessage   = "send_message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventDeleteChat    = "delete_chat"
	EventBlockUser     = "block_user"
	EventUnblockUser   = "unblock_user"
)

// Outbound event names. The dialogs_* family targets private rooms and
// carries chat-summary refreshes; the rest target chat rooms.
const (
	EventReceiveMessage = "receive_message"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventUnauthorized   = "unauthorized"

	EventDialogsReceiveMessage = "dialogs_receive_message"
	EventDialogsEditMessage    = "dialogs_edit_message"
	EventDialogsDeleteMessage  = "dialogs_delete_message"
	EventDialogsDeleteChat     = "dialogs_delete_chat"
	EventDialogsJoinChat       = "dialogs_join_chat"
)

// Validate performs the structural checks shared by all inbound frames.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Event) == "" {
		return errors.New("missing event")
	}
	return nil
}

// AuthPayload is the argument of the auth frame. The token travels in
// the frame body rather than the URL so it never lands in access logs.
type AuthPayload struct {
	AccessToken string `json:"accessToken"`
}

// RecipientPayload is the argument shape of every inbound event that
// addresses the peer of a two-party chat.
type RecipientPayload struct {
	RecipientID string `json:"recipientId"`
}

type SendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
}

type EditMessagePayload struct {
	RecipientID string `json:"recipientId"`
	MessageID   string `json:"messageId"`
	Text        string `json:"text"`
}

type DeleteMessagePayload struct {
	RecipientID string `json:"recipientId"`
	MessageID   string `json:"messageId"`
}

// UnauthorizedPayload echoes the rejected call so the client can refresh
// its credentials and replay the exact same invocation once.
type UnauthorizedPayload struct {
	Controller string          `json:"controller"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send frame. Marshal
// failures cannot happen for the payload types used here.
func NewEnvelope(event string, payload any) Envelope {
	if payload == nil {
		return Envelope{Event: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Event: event}
	}
	return Envelope{Event: event, Data: data}
}
