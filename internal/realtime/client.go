package realtime

import (
	"sync"
)

// Client represents one live websocket connection.
//
// Send is never closed by the server so concurrent broadcasters cannot
// panic; done signals the connection goroutines to stop instead.
// UserID and IsAdmin are set at most once, on the read-loop goroutine,
// when the connection's auth frame verifies; an empty UserID means the
// connection is still unauthenticated.
type Client struct {
	ConnID  string
	UserID  string
	IsAdmin bool
	Send    chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(connID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ConnID: connID,
		Send:   make(chan Envelope, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Authenticated reports whether the handshake credentials verified.
func (c *Client) Authenticated() bool {
	return c != nil && c.UserID != ""
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent). It does NOT
// close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
