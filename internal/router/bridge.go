package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// BridgeConfig configures the progress bridge.
type BridgeConfig struct {
	HandoffTimeout time.Duration // max wait before an update is dropped
	BufferSize     int           // queued updates between workers and the dispatcher
}

// DefaultBridgeConfig returns sensible defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		HandoffTimeout: 2 * time.Second,
		BufferSize:     64,
	}
}

// ErrBridgeRunning is returned by Start when the bridge is running.
var ErrBridgeRunning = errors.New("bridge already running")

// progressUpdate is one handoff across the worker boundary.
type progressUpdate struct {
	taskID   string
	progress float64
	message  string
}

// Bridge carries progress updates from the synthesis workers into the
// routing layer over a bounded queue. Emit blocks at most the handoff
// timeout and then drops the update: losing an intermediate tick is
// acceptable, stalling a worker on a slow client round trip is not.
type Bridge struct {
	cfg    BridgeConfig
	router *Router
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	updates chan progressUpdate
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBridge creates a stopped bridge feeding the given router.
func NewBridge(cfg BridgeConfig, router *Router, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBridgeConfig()
	if cfg.HandoffTimeout <= 0 {
		cfg.HandoffTimeout = def.HandoffTimeout
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}

	return &Bridge{
		cfg:    cfg,
		router: router,
		logger: logger.With("component", "bridge"),
	}
}

// Start launches the dispatch goroutine. Restartable after Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return ErrBridgeRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.updates = make(chan progressUpdate, b.cfg.BufferSize)
	b.cancel = cancel
	b.running = true

	updates := b.updates
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatchLoop(runCtx, updates)
	}()

	b.logger.Info("progress bridge started",
		"handoff_timeout", b.cfg.HandoffTimeout,
		"buffer", b.cfg.BufferSize,
	)

	return nil
}

// Stop cancels dispatching and waits for the loop to exit. Updates still
// queued are discarded; Emit calls after Stop fail explicitly.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.cancel()
	b.running = false
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("progress bridge stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit hands one progress update to the routing layer. Returns false
// when the bridge is not running or the queue stays full past the
// handoff timeout; either way the caller keeps running and the update
// is gone.
func (b *Bridge) Emit(taskID string, progress float64, message string) bool {
	b.mu.RLock()
	running := b.running
	updates := b.updates
	b.mu.RUnlock()

	if !running {
		b.logger.Warn("emit with bridge stopped, update dropped", "task_id", taskID)
		return false
	}

	u := progressUpdate{taskID: taskID, progress: progress, message: message}

	select {
	case updates <- u:
		return true
	default:
	}

	timer := time.NewTimer(b.cfg.HandoffTimeout)
	defer timer.Stop()

	select {
	case updates <- u:
		return true
	case <-timer.C:
		b.logger.Warn("handoff timeout, progress update dropped",
			"task_id", taskID,
			"progress", progress,
		)
		return false
	}
}

func (b *Bridge) dispatchLoop(ctx context.Context, updates <-chan progressUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			b.router.SendProgress(u.taskID, u.progress, u.message)
		}
	}
}
