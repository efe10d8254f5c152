package connection

import (
	"log/slog"
	"sync"
	"time"
)

// Config configures the connection registry.
type Config struct {
	MaxConnections int // admission limit; connects beyond this are refused

	// Now overrides the time source. Nil means time.Now. Used by tests
	// that need to age heartbeats without sleeping.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections: 100,
	}
}

// Registry owns the set of live connections. It enforces identity
// uniqueness and capacity, and is the only writer of connection state:
// every mutation happens under its lock, transports are held exclusively
// here, and callers outside this package only see snapshots.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	conns map[string]*conn
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = DefaultConfig().MaxConnections
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		cfg:    cfg,
		logger: logger.With("component", "registry"),
		now:    now,
		conns:  make(map[string]*conn),
	}
}

// Admission is a handle to one admitted connection. Release removes
// exactly this connection and never a newer one admitted under the same
// client id.
type Admission struct {
	registry *Registry
	c        *conn
}

// ClientID returns the identity the connection was admitted under.
func (a *Admission) ClientID() string {
	return a.c.clientID
}

// Release tears down this connection if it is still the registered one.
// Safe to call concurrently with a fresh Admit for the same client id.
func (a *Admission) Release(reason CloseReason) {
	a.registry.release(a.c, reason)
}

// Admit registers a new connection under clientID. It refuses the
// connection with ErrCapacity when the registry is full, closing the
// transport with a capacity reason; the capacity check comes before the
// reconnect check, so at capacity even a client with a live connection
// cannot supersede it. Otherwise, when a prior connection exists for
// the same id, the new one is registered first and only then is the old
// channel closed as superseded, so an actively-reconnecting client never
// observes a window with zero usable channels.
func (r *Registry) Admit(clientID string, t Transport) (*Admission, error) {
	r.mu.Lock()

	if len(r.conns) >= r.cfg.MaxConnections {
		count := len(r.conns)
		r.mu.Unlock()

		r.logger.Warn("connection rejected: capacity reached",
			"client_id", clientID,
			"active", count,
			"max", r.cfg.MaxConnections,
		)
		t.Close(ReasonCapacity)
		return nil, ErrCapacity
	}

	old := r.conns[clientID]
	ts := r.now()
	c := &conn{
		clientID:        clientID,
		transport:       t,
		state:           StateConnected,
		connectedAt:     ts,
		lastHeartbeatAt: ts,
	}
	r.conns[clientID] = c
	if old != nil {
		old.state = StateClosing
	}
	count := len(r.conns)
	r.mu.Unlock()

	// Close the superseded channel only after the replacement is live.
	// The state field is never touched past this point: once a conn is
	// out of the map it is unobservable, and writing it here would race
	// the lock-held writes.
	if old != nil {
		r.logger.Info("connection superseded by reconnect", "client_id", clientID)
		old.transport.Close(ReasonSuperseded)
	}

	r.logger.Info("connection admitted",
		"client_id", clientID,
		"active", count,
		"max", r.cfg.MaxConnections,
	)

	return &Admission{registry: r, c: c}, nil
}

// Disconnect removes whatever connection is registered under clientID
// and closes its transport. Idempotent: a missing entry is not an error.
func (r *Registry) Disconnect(clientID string, reason CloseReason) {
	r.mu.Lock()
	c := r.conns[clientID]
	if c == nil {
		r.mu.Unlock()
		return
	}
	delete(r.conns, clientID)
	c.state = StateClosing
	remaining := len(r.conns)
	r.mu.Unlock()

	c.transport.Close(reason)

	r.logger.Info("connection closed",
		"client_id", clientID,
		"reason", reason.Text(),
		"remaining", remaining,
	)
}

// release removes c only if it is still the registered connection for
// its client id, then closes its transport either way.
func (r *Registry) release(c *conn, reason CloseReason) {
	r.mu.Lock()
	if r.conns[c.clientID] == c {
		delete(r.conns, c.clientID)
	}
	c.state = StateClosing
	r.mu.Unlock()

	c.transport.Close(reason)
}

// Send writes one framed message to the client. Returns false when no
// connected entry exists or the transport write fails; a failed write
// tears the connection down rather than retrying.
func (r *Registry) Send(clientID string, data []byte) bool {
	r.mu.Lock()
	c := r.conns[clientID]
	if c == nil || c.state != StateConnected {
		r.mu.Unlock()
		r.logger.Debug("send to absent client dropped", "client_id", clientID)
		return false
	}
	t := c.transport
	r.mu.Unlock()

	if err := t.Write(data); err != nil {
		r.logger.Warn("transport write failed, disconnecting",
			"client_id", clientID,
			"error", err,
		)
		r.release(c, ReasonNormal)
		return false
	}
	return true
}

// Broadcast writes one framed message to every live connection and
// returns the number of successful deliveries. Connections whose write
// fails are torn down, same as a failed Send.
func (r *Registry) Broadcast(data []byte) int {
	r.mu.Lock()
	targets := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		if c.state == StateConnected {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if err := c.transport.Write(data); err != nil {
			r.logger.Warn("broadcast write failed, disconnecting",
				"client_id", c.clientID,
				"error", err,
			)
			r.release(c, ReasonNormal)
			continue
		}
		delivered++
	}
	return delivered
}

// Heartbeat records an explicit liveness message from the client. Only
// these messages reset the staleness clock; ordinary traffic does not.
func (r *Registry) Heartbeat(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[clientID]
	if c == nil || c.state != StateConnected {
		return false
	}
	c.lastHeartbeatAt = r.now()
	return true
}

// IsConnected reports whether a connected entry exists for clientID.
func (r *Registry) IsConnected(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[clientID]
	return c != nil && c.state == StateConnected
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Stats returns the operational summary for health reporting.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		ActiveConnections: len(r.conns),
		MaxConnections:    r.cfg.MaxConnections,
	}
}

// Info returns a snapshot of one connection.
func (r *Registry) Info(clientID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[clientID]
	if c == nil {
		return Info{}, false
	}
	return c.info(), true
}

// Snapshot returns a snapshot of every live connection.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.conns))
	for _, c := range r.conns {
		infos = append(infos, c.info())
	}
	return infos
}

// CloseAll closes every live connection with a normal-closure reason.
// Used during shutdown after the sweep has stopped.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	closing := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		c.state = StateClosing
		closing = append(closing, c)
	}
	r.conns = make(map[string]*conn)
	r.mu.Unlock()

	for _, c := range closing {
		c.transport.Close(ReasonNormal)
	}

	if len(closing) > 0 {
		r.logger.Info("closed all connections", "count", len(closing))
	}
}

func (c *conn) info() Info {
	return Info{
		ClientID:        c.clientID,
		State:           c.state,
		ConnectedAt:     c.connectedAt,
		LastHeartbeatAt: c.lastHeartbeatAt,
	}
}
