// Package util holds small helpers shared by commands.
package util

import (
	"context"
	"sync"
)

// Parallel calls fn for every input on at most workerLimit goroutines. The
// first error cancels the context handed to the remaining calls and is
// returned once all workers have stopped.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, int, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}
	if workerLimit > len(inputs) {
		workerLimit = len(inputs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		idx  int
		item T
	}
	jobs := make(chan job)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < workerLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := fn(ctx, j.idx, j.item); err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, item := range inputs {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{i, item}:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}
