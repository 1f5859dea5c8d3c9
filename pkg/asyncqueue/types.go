package asyncqueue

import (
	"context"
)

// Callback receives the outcome of a task. It is invoked on the queue's loop
// goroutine and must not block. The one exception is an Add made after Close:
// the loop is gone, so ErrQueueStopped is delivered from a new goroutine.
type Callback[R any] func(result R, err error)

// Processor performs the work for one item. It must eventually call done
// exactly once, from any goroutine. It is invoked on the loop goroutine and
// must not block; blocking work belongs in a goroutine (see ProcessFunc).
type Processor[T, R any] func(ctx context.Context, item T, done Callback[R])

// ProcessFunc adapts a blocking function into a Processor. Each invocation
// runs on its own goroutine; a panic is reported as an InvocationError.
func ProcessFunc[T, R any](fn func(ctx context.Context, item T) (R, error)) Processor[T, R] {
	return func(ctx context.Context, item T, done Callback[R]) {
		go func() {
			var (
				result R
				err    error
			)
			defer func() {
				if rec := recover(); rec != nil {
					var zero R
					done(zero, &PanicError{Value: rec})
					return
				}
				done(result, err)
			}()

			result, err = fn(ctx, item)
		}()
	}
}

// Options configures a Queue.
type Options[T any, K comparable, R any] struct {
	// Name labels the queue in logs and wrapped errors.
	Name string
	// Parallelism caps the number of items processing at once.
	// Zero means DefaultParallelism.
	Parallelism int
	Processor   Processor[T, R]
	// GetKey derives the dedup key of an item. It must be deterministic.
	// When nil the item is its own key, which requires T and K to be the
	// same type.
	GetKey func(item T) K
	// Context is handed to every processor invocation. The queue never
	// cancels it.
	Context context.Context
}

type Result[T any] struct {
	Data T
	Err  error
}

// Future receives the outcome of an item added with AddFuture.
type Future[T any] struct {
	input chan Result[T]
}

func NewFuture[T any](input chan Result[T]) *Future[T] {
	return &Future[T]{input: input}
}

// C returns the channel that receives exactly one result.
func (f *Future[T]) C() <-chan Result[T] {
	return f.input
}

// Wait blocks until the result arrives or ctx is done. Use either Wait or C,
// not both.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-f.input:
		return r.Data, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Pending int
	Active  int
	Entries int
	Stopped bool
}
