package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/util"
)

// Queue defaults.
const (
	DefaultQueueWorkers = 4
	DefaultQueueSize    = 256
	DefaultTaskTimeout  = 60 * time.Second
)

// TaskFunc is a unit of background work.
type TaskFunc func(ctx context.Context) error

type queuedTask struct {
	id   string
	name string
	fn   TaskFunc
}

// QueueOpts holds configuration options for a TaskQueue.
type QueueOpts struct {
	Workers int
	Size    int
	Timeout time.Duration
}

// QueueOption defines a configuration option for a TaskQueue.
type QueueOption func(*QueueOpts)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) QueueOption {
	return func(o *QueueOpts) {
		o.Workers = n
	}
}

// WithQueueSize sets the number of tasks that may wait for a worker.
func WithQueueSize(n int) QueueOption {
	return func(o *QueueOpts) {
		o.Size = n
	}
}

// WithTaskTimeout bounds how long a single task may run.
func WithTaskTimeout(d time.Duration) QueueOption {
	return func(o *QueueOpts) {
		o.Timeout = d
	}
}

// TaskQueue runs work off the request path on a fixed pool of workers. Submissions never
// block: when the buffer is full the task is dropped and logged.
type TaskQueue struct {
	opts  QueueOpts
	tasks chan queuedTask
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewTaskQueue creates a queue. Workers start with Start.
func NewTaskQueue(opts ...QueueOption) *TaskQueue {
	cfg := QueueOpts{
		Workers: DefaultQueueWorkers,
		Size:    DefaultQueueSize,
		Timeout: DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Size < 0 {
		cfg.Size = 0
	}
	return &TaskQueue{opts: cfg, tasks: make(chan queuedTask, cfg.Size)}
}

// Start launches the workers. Tasks run with a context derived from ctx, so cancelling
// ctx aborts in-flight work.
func (q *TaskQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.ctx, q.cancel = context.WithCancel(ctx)
	slog.Info("TaskQueue.Start: starting workers", "workers", q.opts.Workers, "size", q.opts.Size)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Submit enqueues fn under a descriptive name. It reports false when the queue is closed
// or full.
func (q *TaskQueue) Submit(name string, fn TaskFunc) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		slog.Warn("TaskQueue.Submit: queue closed, dropping task", "name", name)
		metrics.QueueDropped.Inc()
		return false
	}
	t := queuedTask{id: util.GenerateTaskID(), name: name, fn: fn}
	select {
	case q.tasks <- t:
		slog.Debug("TaskQueue.Submit: task queued", "id", t.id, "name", name)
		return true
	default:
		slog.Warn("TaskQueue.Submit: queue full, dropping task", "name", name, "size", q.opts.Size)
		metrics.QueueDropped.Inc()
		return false
	}
}

// Pending returns the number of tasks waiting for a worker.
func (q *TaskQueue) Pending() int {
	return len(q.tasks)
}

// Stop refuses new work, lets workers drain what is already queued and waits for them.
// Stop is safe to call more than once.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	started := q.started
	q.mu.Unlock()

	if !started {
		return
	}
	q.wg.Wait()
	q.cancel()
	slog.Info("TaskQueue.Stop: all workers stopped")
}

func (q *TaskQueue) worker(n int) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(n, t)
	}
}

func (q *TaskQueue) run(worker int, t queuedTask) {
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.Timeout)
	defer cancel()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("TaskQueue.run: task panicked", "id", t.id, "name", t.name, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return t.fn(ctx)
	}()

	if err != nil {
		slog.Error("TaskQueue.run: task failed", "id", t.id, "name", t.name, "worker", worker, "error", err)
		return
	}
	slog.Debug("TaskQueue.run: task done", "id", t.id, "name", t.name, "worker", worker, "elapsed", time.Since(start))
}
