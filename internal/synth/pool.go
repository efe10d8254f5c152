package synth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// TaskNotifier is the slice of the task router the pool needs. A false
// return from any send means nobody is listening; the job keeps running.
type TaskNotifier interface {
	SendStart(taskID string) bool
	SendComplete(taskID, result string) bool
	SendError(taskID, errText string) bool
}

// ProgressEmitter is the bridge entry point workers report through.
type ProgressEmitter interface {
	Emit(taskID string, progress float64, message string) bool
}

// PoolConfig configures the synthesis worker pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:   2,
		QueueSize: 16,
	}
}

// ErrPoolRunning is returned by Start when the pool is running.
var ErrPoolRunning = errors.New("pool already running")

// Pool executes synthesis jobs on a fixed set of workers fed by a
// bounded queue.
type Pool struct {
	cfg      PoolConfig
	engine   Synthesizer
	notifier TaskNotifier
	bridge   ProgressEmitter
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	jobs    chan Request
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a stopped pool.
func NewPool(cfg PoolConfig, engine Synthesizer, notifier TaskNotifier, bridge ProgressEmitter, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPoolConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}

	return &Pool{
		cfg:      cfg,
		engine:   engine,
		notifier: notifier,
		bridge:   bridge,
		logger:   logger.With("component", "synth_pool"),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.jobs = make(chan Request, p.cfg.QueueSize)
	p.cancel = cancel
	p.running = true

	jobs := p.jobs
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(runCtx, id, jobs)
		}(i)
	}

	p.logger.Info("synthesis pool started",
		"workers", p.cfg.Workers,
		"queue_size", p.cfg.QueueSize,
	)

	return nil
}

// Stop cancels the workers and waits for in-flight jobs to finish or
// the context to expire. Queued jobs that never ran are dropped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("synthesis pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a job without blocking. Returns false when the pool is
// stopped or the queue is full; the caller decides how to reject.
func (p *Pool) Submit(req Request) bool {
	p.mu.Lock()
	running := p.running
	jobs := p.jobs
	p.mu.Unlock()

	if !running {
		return false
	}

	select {
	case jobs <- req:
		return true
	default:
		p.logger.Warn("job queue full, submission rejected", "task_id", req.TaskID)
		return false
	}
}

// EngineInfo describes the pool's engine when it supports Describer.
func (p *Pool) EngineInfo() EngineInfo {
	if d, ok := p.engine.(Describer); ok {
		return d.Info()
	}
	return EngineInfo{Name: "unknown"}
}

// QueueDepth returns the number of jobs waiting for a worker.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jobs == nil {
		return 0
	}
	return len(p.jobs)
}

func (p *Pool) workerLoop(ctx context.Context, id int, jobs <-chan Request) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-jobs:
			p.runJob(ctx, id, req)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, worker int, req Request) {
	start := time.Now()
	p.logger.Info("job started",
		"worker", worker,
		"task_id", req.TaskID,
		"client_id", req.ClientID,
	)

	p.notifier.SendStart(req.TaskID)

	progress := func(fraction float64, message string) {
		p.bridge.Emit(req.TaskID, fraction*100, message)
	}

	result, err := p.engine.Synthesize(ctx, req, progress)
	if err != nil {
		p.logger.Warn("job failed",
			"worker", worker,
			"task_id", req.TaskID,
			"error", err,
			"elapsed", time.Since(start),
		)
		p.notifier.SendError(req.TaskID, err.Error())
		return
	}

	p.notifier.SendComplete(req.TaskID, result.AudioURL)
	p.logger.Info("job completed",
		"worker", worker,
		"task_id", req.TaskID,
		"output", result.OutputPath,
		"elapsed", time.Since(start),
	)
}
