package router

import (
	"log/slog"
	"sync"

	"github.com/voxgate/voxgate/internal/protocol"
)

// ConnectionSender is the slice of the connection registry the router
// needs: resolve-and-write, nothing else.
type ConnectionSender interface {
	Send(clientID string, data []byte) bool
	IsConnected(clientID string) bool
}

// Status is the lifecycle state of a task binding.
type Status int

const (
	StatusRegistered Status = iota
	StatusActive
	StatusTerminated
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusActive:
		return "active"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// binding maps one task to the connection identity that owns it.
type binding struct {
	clientID     string
	status       Status
	lastProgress float64
}

// Router owns the task-to-client routing table. Computation collaborators
// push lifecycle events through it; the router resolves the owning
// connection and delegates the write to the registry. Every send returns
// a plain bool: a missing binding or failed delivery is expected when the
// client has gone away, never an error the computation must handle.
type Router struct {
	conns  ConnectionSender
	logger *slog.Logger

	mu       sync.Mutex
	bindings map[string]*binding
}

// New creates a router on top of the given connection sender.
func New(conns ConnectionSender, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		conns:    conns,
		logger:   logger.With("component", "router"),
		bindings: make(map[string]*binding),
	}
}

// Register binds taskID to clientID. Multiple tasks may bind to one
// connection; registering an existing task id rebinds it.
func (r *Router) Register(taskID, clientID string) {
	r.mu.Lock()
	r.bindings[taskID] = &binding{
		clientID: clientID,
		status:   StatusRegistered,
	}
	r.mu.Unlock()

	r.logger.Debug("task registered", "task_id", taskID, "client_id", clientID)
}

// Unregister removes a binding without sending anything. Used when a
// task is abandoned before any terminal event. Returns false if no
// binding existed.
func (r *Router) Unregister(taskID string) bool {
	r.mu.Lock()
	_, ok := r.bindings[taskID]
	delete(r.bindings, taskID)
	r.mu.Unlock()

	if ok {
		r.logger.Debug("task unregistered", "task_id", taskID)
	}
	return ok
}

// SendStart delivers the start event and marks the binding active.
func (r *Router) SendStart(taskID string) bool {
	r.mu.Lock()
	b, ok := r.bindings[taskID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("start for unknown task dropped", "task_id", taskID)
		return false
	}
	b.status = StatusActive
	clientID := b.clientID
	r.mu.Unlock()

	return r.send(clientID, protocol.NewStart(taskID))
}

// SendProgress delivers a progress event. Progress is monotonic by
// contract: a value below the task's last delivered progress is dropped
// so clients never see a progress indicator move backwards.
func (r *Router) SendProgress(taskID string, progress float64, message string) bool {
	r.mu.Lock()
	b, ok := r.bindings[taskID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("progress for unknown task dropped", "task_id", taskID)
		return false
	}
	if progress < b.lastProgress {
		last := b.lastProgress
		r.mu.Unlock()
		r.logger.Debug("non-monotonic progress dropped",
			"task_id", taskID,
			"progress", progress,
			"last", last,
		)
		return false
	}
	b.status = StatusActive
	b.lastProgress = progress
	clientID := b.clientID
	r.mu.Unlock()

	return r.send(clientID, protocol.NewProgress(taskID, progress, message))
}

// SendComplete delivers the terminal success event and removes the
// binding whether or not delivery succeeds. The task cannot re-enter the
// table; a second call is a no-op returning false.
func (r *Router) SendComplete(taskID, result string) bool {
	clientID, ok := r.terminate(taskID)
	if !ok {
		return false
	}
	return r.send(clientID, protocol.NewComplete(taskID, result))
}

// SendError delivers the terminal failure event and removes the binding
// whether or not delivery succeeds.
func (r *Router) SendError(taskID, errText string) bool {
	clientID, ok := r.terminate(taskID)
	if !ok {
		return false
	}
	return r.send(clientID, protocol.NewTaskError(taskID, errText))
}

// terminate removes the binding and returns its owner. Removal happens
// exactly once per task regardless of delivery outcome.
func (r *Router) terminate(taskID string) (string, bool) {
	r.mu.Lock()
	b, ok := r.bindings[taskID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("terminal event for unknown task dropped", "task_id", taskID)
		return "", false
	}
	b.status = StatusTerminated
	delete(r.bindings, taskID)
	r.mu.Unlock()

	return b.clientID, true
}

// TaskCount returns the number of live bindings.
func (r *Router) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

func (r *Router) send(clientID string, msg protocol.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		r.logger.Error("encode message failed", "type", msg.Type, "error", err)
		return false
	}
	return r.conns.Send(clientID, data)
}
