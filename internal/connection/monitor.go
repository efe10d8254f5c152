package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/protocol"
)

// MonitorConfig configures the heartbeat monitor.
type MonitorConfig struct {
	SweepInterval    time.Duration // cadence of the staleness sweep
	HeartbeatTimeout time.Duration // eviction threshold
	ProbeAfter       time.Duration // idle threshold before a liveness probe is sent

	// Now overrides the time source. Nil means time.Now.
	Now func() time.Time
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SweepInterval:    60 * time.Second,
		HeartbeatTimeout: 120 * time.Second,
		ProbeAfter:       90 * time.Second,
	}
}

// ErrAlreadyRunning is returned by Start when the monitor is running.
var ErrAlreadyRunning = errors.New("monitor already running")

// Monitor periodically sweeps the registry and evicts connections whose
// last heartbeat is older than the hard timeout. Connections idle past
// the probe threshold but not yet evictable get a heartbeat_check probe;
// eviction still waits for the hard timeout regardless of probe outcome,
// so a probe lost in transit cannot kill a live client early.
type Monitor struct {
	cfg      MonitorConfig
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a stopped monitor for the given registry.
func NewMonitor(cfg MonitorConfig, registry *Registry, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultMonitorConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.ProbeAfter <= 0 {
		cfg.ProbeAfter = def.ProbeAfter
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Monitor{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "monitor"),
		now:      now,
	}
}

// Start begins the periodic sweep in the background. The monitor is
// restartable: Stop then Start resumes sweeping the same registry.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweepLoop(runCtx)
	}()

	m.logger.Info("heartbeat monitor started",
		"sweep_interval", m.cfg.SweepInterval,
		"heartbeat_timeout", m.cfg.HeartbeatTimeout,
		"probe_after", m.cfg.ProbeAfter,
	)

	return nil
}

// Stop cancels the periodic sweep and waits for it to exit. Connections
// stay registered; a later Start resumes tracking them.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("heartbeat monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one staleness pass over every live connection. Exported so
// operators and tests can force a pass without waiting for the ticker.
func (m *Monitor) Sweep() {
	now := m.now()
	var evicted, probed int

	for _, info := range m.registry.Snapshot() {
		idle := now.Sub(info.LastHeartbeatAt)

		switch {
		case idle > m.cfg.HeartbeatTimeout:
			m.logger.Warn("evicting stale connection",
				"client_id", info.ClientID,
				"idle", idle,
			)
			m.registry.Disconnect(info.ClientID, ReasonStale)
			evicted++

		case idle > m.cfg.ProbeAfter:
			data, err := protocol.NewHeartbeatCheck().Encode()
			if err != nil {
				continue
			}
			if m.registry.Send(info.ClientID, data) {
				probed++
			}
		}
	}

	if evicted > 0 || probed > 0 {
		m.logger.Debug("sweep complete", "evicted", evicted, "probed", probed)
	}
}
