package chat

import "errors"

var (
	// ErrChatNotFound is returned for operations requiring an existing chat.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound is returned for operations requiring an existing
	// message.
	ErrMessageNotFound = errors.New("message not found")
)
