// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned by Submit when every slot of the queue is taken.
	ErrQueueFull = errors.New("worker queue full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("worker pool stopped")
)

// Task is one unit of work. Stream drains run as tasks. ctx is cancelled
// when the pool stops; a task that receives an already cancelled ctx was
// dequeued during shutdown and should only clean up.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  *zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
}

func NewPool(workers int, log *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: log}
}

func (p *Pool) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	if err := task(ctx); err != nil {
		p.log.Error().Err(err).Int("worker", id).Msg("task failed")
	}
}

// Stop cancels running tasks and waits for them, then hands every task
// still queued a cancelled context so it can release what it holds.
// It is idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()

	done, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		select {
		case task := <-p.jobs:
			p.run(done, -1, task)
		default:
			return
		}
	}
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// no back-pressure: the caller reports the failure
		return ErrQueueFull
	}
}

// Spawn submits a function that takes the worker context; it matches
// usecase.Spawner.
func (p *Pool) Spawn(fn func(ctx context.Context)) error {
	return p.Submit(func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
