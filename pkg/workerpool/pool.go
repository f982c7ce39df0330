// Package workerpool provides a bounded worker pool for controlled concurrency.
// The notification dispatcher uses it to fan out sends for completed audits.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrShuttingDown is returned by Submit after Stop.
	ErrShuttingDown = errors.New("pool is shutting down")
	// ErrQueueFull is returned when the bounded queue has no room.
	ErrQueueFull = errors.New("task queue is full")
)

// Task represents a unit of work to be processed
type Task[T any] struct {
	ID      string
	Payload T
	Context context.Context
}

// Result represents the outcome of task processing
type Result struct {
	TaskID   string
	Success  bool
	Error    error
	Attempts int
	// Permanent stops retries when Success is false
	Permanent bool
	Data      any
}

// WorkerFunc is the function signature for task processing
type WorkerFunc[T any] func(ctx context.Context, task *Task[T]) *Result

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// QueueSize is the size of the task queue
	QueueSize int
	// MaxRetries is the maximum number of retries for failed tasks
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between retries
	RetryDelay time.Duration
	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for outbound messaging, which is
// bounded by the gateway rate rather than local CPU.
func DefaultConfig() Config {
	return Config{
		Workers:                 4,
		QueueSize:               256,
		MaxRetries:              2,
		RetryDelay:              2 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of workers for concurrent task processing
type Pool[T any] struct {
	config     Config
	workerFunc WorkerFunc[T]
	logger     *zap.Logger

	taskChan   chan *Task[T]
	resultChan chan *Result
	wg         sync.WaitGroup
	stopOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	tasksRetried   int64
	activeWorkers  int64
	queueDepth     int64
}

// New creates a new worker pool
func New[T any](cfg Config, fn WorkerFunc[T], logger *zap.Logger) (*Pool[T], error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.GracefulShutdownTimeout <= 0 {
		cfg.GracefulShutdownTimeout = def.GracefulShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[T]{
		config:     cfg,
		workerFunc: fn,
		logger:     logger,
		taskChan:   make(chan *Task[T], cfg.QueueSize),
		resultChan: make(chan *Result, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches all workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit adds a task to the queue without blocking
func (p *Pool[T]) Submit(task *Task[T]) error {
	select {
	case <-p.ctx.Done():
		return ErrShuttingDown
	default:
	}

	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitBlocking waits for queue room until ctx is done. Consumers use it to
// apply backpressure to the broker instead of dropping records.
func (p *Pool[T]) SubmitBlocking(ctx context.Context, task *Task[T]) error {
	select {
	case <-p.ctx.Done():
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	}
}

// Results returns the result channel for async processing. It is closed by Stop.
func (p *Pool[T]) Results() <-chan *Result {
	return p.resultChan
}

// Stop drains queued tasks and shuts down the pool
func (p *Pool[T]) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.logger.Info("stopping worker pool")
		p.cancel()
		close(p.taskChan)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("worker pool stopped gracefully")
			close(p.resultChan)
		case <-time.After(p.config.GracefulShutdownTimeout):
			p.logger.Warn("worker pool shutdown timed out")
			err = fmt.Errorf("worker pool shutdown timed out after %s", p.config.GracefulShutdownTimeout)
		}
	})
	return err
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()

	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	for task := range p.taskChan {
		atomic.AddInt64(&p.queueDepth, -1)
		p.processTask(id, task)
	}
}

// processTask runs a task, retrying non-permanent failures with linear backoff.
// Queued tasks keep their own context so Stop drains them.
func (p *Pool[T]) processTask(workerID int, task *Task[T]) {
	ctx := task.Context
	if ctx == nil {
		ctx = context.Background()
	}

	result := p.attempt(ctx, task)

	if result.Success {
		atomic.AddInt64(&p.tasksCompleted, 1)
	} else {
		atomic.AddInt64(&p.tasksFailed, 1)
		p.logger.Error("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Error))
	}

	select {
	case p.resultChan <- result:
	default:
		p.logger.Warn("result channel full, dropping result",
			zap.String("task_id", task.ID))
	}
}

func (p *Pool[T]) attempt(ctx context.Context, task *Task[T]) *Result {
	var last *Result
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &Result{TaskID: task.ID, Error: err, Attempts: attempt}
		}

		last = p.workerFunc(ctx, task)
		if last == nil {
			last = &Result{Success: true}
		}
		last.TaskID = task.ID
		last.Attempts = attempt + 1
		if last.Success || last.Permanent || attempt == p.config.MaxRetries {
			break
		}

		atomic.AddInt64(&p.tasksRetried, 1)
		p.logger.Debug("retrying task",
			zap.String("task_id", task.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(last.Error))

		select {
		case <-ctx.Done():
			return &Result{TaskID: task.ID, Error: ctx.Err(), Attempts: attempt + 1}
		case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
		}
	}

	if !last.Success && !last.Permanent && p.config.MaxRetries > 0 {
		last.Error = fmt.Errorf("task failed after %d retries: %w", p.config.MaxRetries, last.Error)
	}
	return last
}

// Stats holds pool counters
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksRetried   int64
	ActiveWorkers  int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		TasksRetried:   atomic.LoadInt64(&p.tasksRetried),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		QueueDepth:     atomic.LoadInt64(&p.queueDepth),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}

// IsHealthy reports whether the queue is below 90% capacity
func (p *Pool[T]) IsHealthy() bool {
	stats := p.Stats()
	return float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
