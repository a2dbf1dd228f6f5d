// Package workers provides a bounded worker pool for concurrent probe
// execution. It supports job queuing, optional rate limiting, graceful
// shutdown, and integrates with the structured logging and metrics systems.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/probemap/probemap/internal/logging"
	"github.com/probemap/probemap/internal/metrics"
)

// Job is a unit of work executed by a pool worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Result captures the execution of one job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds worker pool configuration.
type Config struct {
	// Size is the number of worker goroutines.
	Size int
	// QueueSize is the maximum number of queued jobs.
	QueueSize int
	// MaxRetries is the number of retries for failed jobs; zero means
	// every job runs exactly once.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// ShutdownTimeout bounds the wait for workers to drain.
	ShutdownTimeout time.Duration
	// RateLimit caps jobs per second (0 = unlimited).
	RateLimit int
}

// DefaultConfig returns a default pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            10,
		QueueSize:       100,
		MaxRetries:      0,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       0,
	}
}

// Pool manages a fixed set of worker goroutines. All workers are joined
// during Shutdown; none outlives the pool.
type Pool struct {
	config      Config
	jobs        chan Job
	results     chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	rateLimiter *time.Ticker
	startOnce   sync.Once
	stopped     int32
}

// New creates a worker pool with the given configuration.
func New(config Config) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.QueueSize < config.Size {
		config.QueueSize = config.Size
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		results: make(chan Result, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	if config.RateLimit > 0 {
		pool.rateLimiter = time.NewTicker(time.Second / time.Duration(config.RateLimit))
	}

	return pool
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		logging.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.runWorker(i)
		}

		metrics.Gauge("worker_pool_size", float64(p.config.Size), metrics.Labels{
			"component": "workers",
		})
		metrics.GetGlobalMetrics().SetActiveWorkers(p.config.Size)
	})
}

// Submit queues a job for execution. It fails when the pool is shut down
// or the queue is full; it never blocks.
func (p *Pool) Submit(job Job) error {
	if atomic.LoadInt32(&p.stopped) == 1 {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		metrics.Counter("jobs_submitted_total", metrics.Labels{
			"job_type": job.Type(),
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Results returns the channel carrying job results.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting jobs, drains the queue, and joins every
// worker. Safe to call more than once.
func (p *Pool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.stopped, 0, 1) {
		return nil
	}

	logging.Debug("Shutting down worker pool")
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("Worker pool shutdown timeout, canceling in-flight jobs")
		p.cancel()
		<-done
	}

	p.cancel()
	close(p.results)

	if p.rateLimiter != nil {
		p.rateLimiter.Stop()
	}

	metrics.GetGlobalMetrics().SetActiveWorkers(0)
	return nil
}

// runWorker drains the job queue until it closes or the pool is canceled.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	logging.Debug("Worker started", "worker_id", id)
	defer logging.Debug("Worker stopped", "worker_id", id)

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.executeJob(id, job)
		case <-p.ctx.Done():
			return
		}
	}
}

// executeJob runs a single job, retrying when the pool is configured to.
func (p *Pool) executeJob(workerID int, job Job) {
	if p.rateLimiter != nil {
		select {
		case <-p.rateLimiter.C:
		case <-p.ctx.Done():
			return
		}
	}

	var lastErr error
	var retries int

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		start := time.Now()
		err := job.Execute(p.ctx)
		duration := time.Since(start)

		if err == nil {
			p.deliver(Result{
				JobID:    job.ID(),
				JobType:  job.Type(),
				Duration: duration,
				Retries:  retries,
			})
			metrics.Counter("jobs_completed_total", metrics.Labels{
				"job_type": job.Type(),
				"status":   "success",
			})
			return
		}

		lastErr = err
		retries = attempt

		if attempt < p.config.MaxRetries {
			logging.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"attempt", attempt+1,
				"error", err)
			select {
			case <-time.After(p.config.RetryDelay):
			case <-p.ctx.Done():
				return
			}
		}
	}

	p.deliver(Result{
		JobID:   job.ID(),
		JobType: job.Type(),
		Error:   lastErr,
		Retries: retries,
	})
	metrics.Counter("jobs_completed_total", metrics.Labels{
		"job_type": job.Type(),
		"status":   "error",
	})
	logging.Debug("Job failed",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"retries", retries,
		"error", lastErr,
		"worker_id", workerID)
}

// deliver hands a result to the consumer without blocking shutdown.
func (p *Pool) deliver(result Result) {
	select {
	case p.results <- result:
	case <-p.ctx.Done():
	}
}
