// Package protocol defines the JSON message envelope exchanged with clients.
//
// Every message carries a "type" discriminator and a unix timestamp in
// seconds. Field names on the wire are snake_case.
package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// Message types.
const (
	TypeConnected         = "connected"
	TypePing              = "ping"
	TypePong              = "pong"
	TypeHeartbeat         = "heartbeat"
	TypeHeartbeatResponse = "heartbeat_response"
	TypeHeartbeatCheck    = "heartbeat_check"
	TypeStatus            = "status"
	TypeStart             = "start"
	TypeProgress          = "progress"
	TypeComplete          = "complete"
	TypeError             = "error"
)

// ErrMalformed indicates an inbound payload that could not be parsed
// as a message envelope.
var ErrMalformed = errors.New("malformed message")

// Message is the single envelope for all client and server messages.
// Optional fields are pointers where zero is a meaningful wire value.
type Message struct {
	Type             string   `json:"type"`
	Timestamp        float64  `json:"timestamp"`
	ClientID         string   `json:"client_id,omitempty"`
	TaskID           string   `json:"task_id,omitempty"`
	Status           string   `json:"status,omitempty"`
	Progress         *float64 `json:"progress,omitempty"`
	Message          string   `json:"message,omitempty"`
	Result           string   `json:"result,omitempty"`
	Error            string   `json:"error,omitempty"`
	Connected        *bool    `json:"connected,omitempty"`
	TotalConnections *int     `json:"total_connections,omitempty"`
}

// Encode marshals the message to its wire form.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Parse decodes an inbound payload. It fails with ErrMalformed when the
// payload is not JSON or carries no type discriminator.
func Parse(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, ErrMalformed
	}
	if m.Type == "" {
		return Message{}, ErrMalformed
	}
	return m, nil
}

// now returns the current unix time in seconds with sub-second precision.
func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NewConnected is the admission greeting for a freshly accepted client.
func NewConnected(clientID string) Message {
	return Message{
		Type:      TypeConnected,
		Timestamp: now(),
		ClientID:  clientID,
		Message:   "connection established",
	}
}

// NewPong replies to a client ping, echoing the ping's timestamp when set.
func NewPong(echo float64) Message {
	if echo == 0 {
		echo = now()
	}
	return Message{Type: TypePong, Timestamp: echo}
}

// NewHeartbeatResponse acknowledges a client heartbeat.
func NewHeartbeatResponse() Message {
	connected := true
	return Message{
		Type:      TypeHeartbeatResponse,
		Timestamp: now(),
		Connected: &connected,
	}
}

// NewHeartbeatCheck is the server-initiated liveness probe sent to a
// connection that has been silent past the probe threshold.
func NewHeartbeatCheck() Message {
	return Message{Type: TypeHeartbeatCheck, Timestamp: now()}
}

// NewStatus replies to a client status query.
func NewStatus(connected bool, totalConnections int) Message {
	return Message{
		Type:             TypeStatus,
		Timestamp:        now(),
		Connected:        &connected,
		TotalConnections: &totalConnections,
	}
}

// NewStart announces that a task has begun processing.
func NewStart(taskID string) Message {
	return Message{
		Type:      TypeStart,
		Timestamp: now(),
		TaskID:    taskID,
		Status:    "processing",
		Message:   "task started",
	}
}

// NewProgress reports task progress in the 0-100 range.
func NewProgress(taskID string, progress float64, message string) Message {
	return Message{
		Type:      TypeProgress,
		Timestamp: now(),
		TaskID:    taskID,
		Status:    "processing",
		Progress:  &progress,
		Message:   message,
	}
}

// NewComplete carries the terminal success event with a result reference.
func NewComplete(taskID, result string) Message {
	return Message{
		Type:      TypeComplete,
		Timestamp: now(),
		TaskID:    taskID,
		Status:    "completed",
		Message:   "task completed",
		Result:    result,
	}
}

// NewTaskError carries the terminal failure event for a task.
func NewTaskError(taskID, errText string) Message {
	return Message{
		Type:      TypeError,
		Timestamp: now(),
		TaskID:    taskID,
		Status:    "error",
		Message:   "task failed",
		Error:     errText,
	}
}

// NewMalformedError is the generic reply to an unparseable inbound payload.
func NewMalformedError() Message {
	return Message{
		Type:      TypeError,
		Timestamp: now(),
		Message:   "invalid message format",
	}
}
