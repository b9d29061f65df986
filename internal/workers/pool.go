// Package workers provides the bounded worker pool the position monitor
// uses to tick many open positions concurrently without a goroutine per
// tick. Narrowed from the teacher's internal/workers.Pool, which
// dispatched an arbitrary Task interface through one queue plus a
// batch processor and a multi-stage pipeline on top of it; this
// module's only consumer submits one job shape, a single position
// tick, so the pool's surface is cut down to that.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of dispatched work: context-aware so a slow snapshot
// fetch or execution call is cancelled at the pool's per-task timeout
// rather than outliving it.
type Job func(ctx context.Context) error

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Name            string        // Pool name for logging
	NumWorkers      int           // Number of worker goroutines
	QueueSize       int           // Size of the task queue
	TaskTimeout     time.Duration // Timeout for individual tasks
	ShutdownTimeout time.Duration // Timeout for graceful shutdown
	PanicRecovery   bool          // Enable panic recovery in workers
}

// DefaultPoolConfig returns sensible defaults for I/O-bound, per-tick
// dispatch.
func DefaultPoolConfig(name string) *PoolConfig {
	return &PoolConfig{
		Name:            name,
		NumWorkers:      8,
		QueueSize:       4096,
		TaskTimeout:     15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		PanicRecovery:   true,
	}
}

// PoolMetrics tracks pool throughput and failure counts.
type PoolMetrics struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksTimeout   int64
	PanicRecovered int64
}

func (m *PoolMetrics) snapshot() PoolStats {
	return PoolStats{
		TasksSubmitted: atomic.LoadInt64(&m.TasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&m.TasksCompleted),
		TasksFailed:    atomic.LoadInt64(&m.TasksFailed),
		TasksTimeout:   atomic.LoadInt64(&m.TasksTimeout),
		PanicRecovered: atomic.LoadInt64(&m.PanicRecovered),
	}
}

// PoolStats is a point-in-time snapshot of PoolMetrics.
type PoolStats struct {
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	TasksTimeout   int64 `json:"tasks_timeout"`
	PanicRecovered int64 `json:"panic_recovered"`
}

// Pool manages a bounded set of worker goroutines pulling Jobs off a
// shared queue.
type Pool struct {
	logger *zap.Logger
	config *PoolConfig

	taskQueue chan Job
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	metrics *PoolMetrics
}

// NewPool creates a new worker pool.
func NewPool(logger *zap.Logger, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig("default")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:    logger,
		config:    config,
		taskQueue: make(chan Job, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &PoolMetrics{},
	}
}

// Start launches the worker goroutines. Calling Start while already
// running is a no-op.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}
	p.logger.Info("starting worker pool",
		zap.String("name", p.config.Name),
		zap.Int("workers", p.config.NumWorkers),
		zap.Int("queue_size", p.config.QueueSize),
	)
	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

// runWorker is one worker goroutine's main loop.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker_id", id))
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.runJob(logger, job)
		}
	}
}

// runJob runs a single job with a per-task timeout and panic recovery.
func (p *Pool) runJob(logger *zap.Logger, job Job) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.config.TaskTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var err error
		if p.config.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&p.metrics.PanicRecovered, 1)
					logger.Error("worker recovered from panic", zap.Any("panic", r))
					err = &PanicError{Recovered: r}
				}
				done <- err
			}()
		}
		err = job(ctx)
		if !p.config.PanicRecovery {
			done <- err
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			atomic.AddInt64(&p.metrics.TasksFailed, 1)
			logger.Debug("task failed", zap.Error(err), zap.Duration("elapsed", time.Since(startTime)))
		} else {
			atomic.AddInt64(&p.metrics.TasksCompleted, 1)
		}
	case <-ctx.Done():
		atomic.AddInt64(&p.metrics.TasksTimeout, 1)
		logger.Warn("task timed out", zap.Duration("timeout", p.config.TaskTimeout))
	}
}

// Submit adds a job to the queue. Submit never blocks: a full queue
// returns ErrQueueFull instead.
func (p *Pool) Submit(job Job) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}
	select {
	case p.taskQueue <- job:
		atomic.AddInt64(&p.metrics.TasksSubmitted, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitFunc submits a plain function as a Job.
func (p *Pool) SubmitFunc(fn func(ctx context.Context) error) error {
	return p.Submit(Job(fn))
}

// Stop cancels the pool's context, which cancels every in-flight job's
// context, then waits up to ShutdownTimeout for the worker goroutines to
// exit. Workers do not wait for in-flight jobs to return, and jobs still
// queued may be left unrun.
func (p *Pool) Stop() error {
	if !p.running.Swap(false) {
		return nil
	}
	p.logger.Info("stopping worker pool", zap.String("name", p.config.Name))
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully", zap.String("name", p.config.Name))
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out",
			zap.String("name", p.config.Name),
			zap.Duration("timeout", p.config.ShutdownTimeout),
		)
		return ErrShutdownTimeout
	}
}

// QueueLength returns the current number of queued jobs.
func (p *Pool) QueueLength() int { return len(p.taskQueue) }

// IsRunning reports whether the pool is currently running.
func (p *Pool) IsRunning() bool { return p.running.Load() }

// Stats returns a point-in-time snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats { return p.metrics.snapshot() }

// Errors returned by Pool methods.
var (
	ErrPoolStopped     = &PoolError{Message: "pool is stopped"}
	ErrQueueFull       = &PoolError{Message: "task queue is full"}
	ErrShutdownTimeout = &PoolError{Message: "shutdown timed out"}
)

// PoolError is a sentinel pool failure.
type PoolError struct {
	Message string
}

func (e *PoolError) Error() string { return e.Message }

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Recovered interface{}
}

func (e *PanicError) Error() string { return "panic recovered" }
