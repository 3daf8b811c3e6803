package ws

import (
	"time"

	"github.com/hlview/hl-dashboard/internal/wire"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	// pongWait bounds how stale the last liveness reply may be before the
	// watchdog declares the connection half-open and forces a reconnect.
	pongWait          = 60 * time.Second
	watchdogInterval  = 10 * time.Second
	maxMessageSize    = 1024 * 1024 * 2
	defaultMaxRetries = 10
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 30 * time.Second
	maxJitter         = time.Second
)

// Status is the externally observable connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Callback receives decoded data frames for one subscription entry.
type Callback func(frame wire.Frame)
