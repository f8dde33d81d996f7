package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enqueue failures.
var (
	ErrNotRunning = errors.New("queue not running")
	ErrFull       = errors.New("queue full")
)

// Job is one unit of background work. Attempt counts retries already made.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig sizes the worker pool and its retry policy.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue fans jobs out to a fixed pool of goroutines. A failed job is retried by the same
// worker after RetryDelay, so retries never compete with new work for buffer space.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.SugaredLogger

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewQueue builds a stopped queue. Call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.Sugar().With("queue", name),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Pending reports how many jobs wait in the buffer.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Start launches the workers. Repeated calls are ignored.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	q.wg.Add(q.cfg.Workers)
	for i := 1; i <= q.cfg.Workers; i++ {
		go q.work(i)
	}
	q.logger.Infow("queue started", "workers", q.cfg.Workers, "buffer", q.cfg.BufferSize)
}

// Stop cancels the workers and waits for in-flight jobs to return. Buffered jobs are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Infow("queue stopped", "dropped", len(q.jobs))
}

// Enqueue pushes a job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	return q.EnqueueContext(context.Background(), job)
}

// TryEnqueue pushes a job without waiting. A full buffer returns ErrFull.
func (q *Queue) TryEnqueue(job Job) error {
	if _, err := q.prepare(&job); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%s: %w", q.name, ErrFull)
	}
}

// EnqueueContext pushes a job, giving up when caller is done. Missing IDs are assigned.
func (q *Queue) EnqueueContext(caller context.Context, job Job) error {
	ctx, err := q.prepare(&job)
	if err != nil {
		return err
	}

	select {
	case q.jobs <- job:
		return nil
	case <-caller.Done():
		return fmt.Errorf("enqueue on %s: %w", q.name, caller.Err())
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
}

func (q *Queue) prepare(job *Job) (context.Context, error) {
	q.mu.RLock()
	running, ctx := q.running, q.ctx
	q.mu.RUnlock()
	if !running {
		return nil, fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	return ctx, nil
}

func (q *Queue) work(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.process(workerID, job)
		}
	}
}

// process runs job until it succeeds, retries run out or the queue stops.
func (q *Queue) process(workerID int, job Job) {
	for {
		err := q.invoke(job)
		if err == nil {
			return
		}
		log := q.logger.With("worker", workerID, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)
		if job.Attempt >= q.cfg.MaxRetries {
			log.Errorw("job exceeded retries")
			return
		}
		log.Warnw("job failed, retrying", "delay", q.cfg.RetryDelay)

		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		job.Attempt++
	}
}

func (q *Queue) invoke(job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return q.handler(q.ctx, job)
}
