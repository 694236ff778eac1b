package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrStagePanicked is returned by WorkerPool.Do when the stage function panics.
var ErrStagePanicked = errors.New("pipeline stage panicked")

// WorkerPool caps how many stage executions (model inference, index I/O) run
// at once across all requests.
type WorkerPool struct {
	sem    *semaphore.Weighted
	size   int
	active atomic.Int64
	logger *zap.Logger
}

// NewWorkerPool creates a pool with size slots (at least 1).
func NewWorkerPool(size int, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	size = max(size, 1)
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: size, logger: logger}
}

// Size returns the number of slots.
func (p *WorkerPool) Size() int {
	return p.size
}

// Active returns the number of occupied slots.
func (p *WorkerPool) Active() int {
	return int(p.active.Load())
}

// Do runs fn on a pool slot and waits for it or for ctx to end. When ctx ends
// first, fn keeps its slot until it returns. A panic in fn is returned as an
// error wrapping ErrStagePanicked.
func (p *WorkerPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.active.Add(1)

	done := make(chan error, 1)
	go func() {
		defer func() {
			p.active.Add(-1)
			p.sem.Release(1)
		}()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("pipeline stage panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				done <- fmt.Errorf("%w: %v", ErrStagePanicked, r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
