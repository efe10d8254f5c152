package connection

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrCapacity      = errors.New("connection capacity reached")
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the lifecycle state of a connection.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason explains why a transport is being closed. Each reason maps
// to a distinguishable websocket close code so clients can tell a capacity
// rejection from a reconnect supersede or a normal shutdown.
type CloseReason int

const (
	ReasonNormal     CloseReason = iota // orderly shutdown or eviction
	ReasonSuperseded                    // replaced by a reconnect under the same client id
	ReasonCapacity                      // admission refused, server full
	ReasonStale                         // heartbeat timeout
)

// Code returns the websocket close code for the reason.
func (r CloseReason) Code() int {
	switch r {
	case ReasonSuperseded:
		return websocket.CloseGoingAway
	case ReasonCapacity:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseNormalClosure
	}
}

// Text returns the close frame text for the reason.
func (r CloseReason) Text() string {
	switch r {
	case ReasonSuperseded:
		return "superseded by reconnect"
	case ReasonCapacity:
		return "server connection limit reached"
	case ReasonStale:
		return "heartbeat timeout"
	default:
		return "normal closure"
	}
}

// Transport is the write side of one client channel. The registry holds
// the only reference to a connection's transport; nothing else writes to it.
type Transport interface {
	// Write sends one framed message to the client.
	Write(data []byte) error

	// Close shuts the channel down with the given reason. Closing an
	// already-closed transport is not an error.
	Close(reason CloseReason) error
}

// conn is one admitted client channel plus its timestamps and state.
type conn struct {
	clientID        string
	transport       Transport
	state           State
	connectedAt     time.Time
	lastHeartbeatAt time.Time
}

// Info is a read-only snapshot of a connection for queries and sweeps.
type Info struct {
	ClientID        string
	State           State
	ConnectedAt     time.Time
	LastHeartbeatAt time.Time
}

// Stats is the operational summary exposed for health reporting.
type Stats struct {
	ActiveConnections int `json:"active_connections"`
	MaxConnections    int `json:"max_connections"`
}
