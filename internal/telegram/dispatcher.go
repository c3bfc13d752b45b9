package telegram

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type job func(ctx context.Context)

// Dispatcher runs jobs one at a time per key, in submission order, while
// jobs for different keys run concurrently. A key's goroutine exits as
// soon as its queue is empty.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher with no running queues.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{queues: make(map[int64][]job), logger: logger}
}

// Submit queues fn for key.
func (d *Dispatcher) Submit(ctx context.Context, key int64, fn job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, running := d.queues[key]; running {
		d.queues[key] = append(q, fn)
		return
	}
	d.queues[key] = []job{fn}
	d.wg.Add(1)
	go d.drain(ctx, key)
}

func (d *Dispatcher) drain(ctx context.Context, key int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[key]
		if len(q) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		fn := q[0]
		q[0] = nil
		d.queues[key] = q[1:]
		d.mu.Unlock()

		d.run(ctx, key, fn)
	}
}

func (d *Dispatcher) run(ctx context.Context, key int64, fn job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Update handler panicked", zap.Int64("user_id", key), zap.Any("panic", r))
		}
	}()
	fn(ctx)
}

// Wait blocks until every queued job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
