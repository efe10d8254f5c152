package connection

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport wraps a *websocket.Conn as a Transport. Writes are
// serialized with a mutex and bounded by a write deadline so a slow
// client cannot stall the caller indefinitely.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewWSTransport wraps an upgraded websocket connection.
func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration) Transport {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsTransport{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// Write sends one text frame to the client.
func (t *wsTransport) Write(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame with the reason's code and tears down the
// underlying connection. Idempotent.
func (t *wsTransport) Close(reason CloseReason) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.writeMu.Lock()
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(reason.Code(), reason.Text()),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()

	return t.conn.Close()
}
