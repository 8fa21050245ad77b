package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is one unit of scheduled work submitted to a Pool.
type Task func(ctx context.Context) error

// PoolOption configures a Pool at construction.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger a Pool reports task errors to.
func WithPoolLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// WithQueueSize sets the pool's submission channel buffer. The default is
// one pending task per worker.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) { p.queueSize = n }
}

// Pool is a small fixed-size worker pool: workers goroutines, each
// draining the same buffered channel of submitted Tasks. It stands in
// for a lock-free MPMC queue per worker with the standard Go substitute,
// a single shared channel, since a goroutine-per-worker pull model gets
// the same load-balancing property without hand-rolled lock-free code.
type Pool struct {
	workers   int
	queueSize int
	logger    *zap.Logger

	tasks  chan Task
	wg     sync.WaitGroup
	once   sync.Once
	cancel context.CancelFunc
}

// NewPool creates a Pool with the given number of workers and starts
// them immediately. workers must be at least 1.
func NewPool(workers int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{workers: workers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}

	if p.queueSize <= 0 {
		p.queueSize = workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.tasks = make(chan Task, p.queueSize)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}

	return p
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(ctx); err != nil {
				p.logger.Warn("scheduler: task failed", zap.Error(err))
			}
		}
	}
}

// Submit enqueues a task. It blocks if every worker is busy and the
// queue is full, unless ctx is cancelled first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new tasks and waits for in-flight tasks to
// finish. Safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
		p.cancel()
	})
}
