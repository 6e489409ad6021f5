// Package parallel runs batches of independent tasks concurrently.
//
// Heap dump captures are self-contained, so a batch of dump files can be
// analyzed with no shared state beyond the result slice. Results keep the
// input order, letting callers match outputs back to inputs.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// PoolConfig configures a worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent workers.
	// Default: min(runtime.NumCPU(), 8)
	Workers int

	// QueueDepth is the buffer size of the task queue.
	// Default: Workers * 2
	QueueDepth int
}

// DefaultPoolConfig returns a configuration sized to the host.
// One heap dump analysis holds a full object graph in memory, so the
// worker count is capped rather than scaled to every core.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{
		Workers:    workers,
		QueueDepth: workers * 2,
	}
}

// WithWorkers returns a copy of the config with the worker count replaced.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.Workers = n
	return c
}

// TaskResult is the outcome of one task.
type TaskResult[T any, R any] struct {
	Input    T
	Result   R
	Error    error
	Duration time.Duration
}

// WorkerPool executes tasks of one shape concurrently.
type WorkerPool[T any, R any] struct {
	config PoolConfig
}

// NewWorkerPool creates a pool with the given configuration. Zero or
// negative settings fall back to DefaultPoolConfig values.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.Workers <= 0 {
		config.Workers = DefaultPoolConfig().Workers
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = config.Workers * 2
	}
	return &WorkerPool[T, R]{config: config}
}

// ExecuteFunc applies fn to every input concurrently and returns one
// TaskResult per input, in input order. A failed task records its error in
// its slot; it does not stop the remaining tasks. Context cancellation
// stops workers from picking up further tasks, leaving unstarted slots
// with zero results.
func (p *WorkerPool[T, R]) ExecuteFunc(ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) []TaskResult[T, R] {
	if len(inputs) == 0 {
		return nil
	}

	results := make([]TaskResult[T, R], len(inputs))
	queue := make(chan int, p.config.QueueDepth)

	workers := p.config.Workers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-queue:
					if !ok {
						return
					}
					start := time.Now()
					out, err := fn(ctx, inputs[idx])
					results[idx] = TaskResult[T, R]{
						Input:    inputs[idx],
						Result:   out,
						Error:    err,
						Duration: time.Since(start),
					}
				}
			}
		}()
	}

	for i := range inputs {
		select {
		case <-ctx.Done():
		case queue <- i:
			continue
		}
		break
	}
	close(queue)

	wg.Wait()
	return results
}
