package realtime

import "time"

// Hard limits for the websocket layer.
const (
	// Largest frame accepted from a client.
	maxFrameBytes = 64 << 10 // 64 KiB

	// Longest message text, in runes.
	maxMessageChars = 4000
)

// Tunable defaults. ws_gateway.go lets the environment override these.
const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Events a single connection may emit per window.
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
