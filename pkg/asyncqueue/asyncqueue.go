package asyncqueue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultParallelism is used when Options.Parallelism is zero.
const DefaultParallelism = 100

// Queue deduplicates items by key and runs at most Parallelism of them at once
// through its processor, fanning each outcome out to every caller that added
// the key.
type Queue[T any, K comparable, R any] struct {
	name        string
	parallelism int
	processor   Processor[T, R]
	getKey      func(T) K
	ctx         context.Context

	loop *loop

	// owned by the loop goroutine
	queued               queue[*entry[T, K, R]]
	entries              *registry[K, *entry[T, K, R]]
	activeTasks          int
	willEnsureProcessing bool
	stopped              bool
	idle                 []chan struct{}

	// mirrors for Stats, written by the loop goroutine only
	pending    atomic.Int64
	active     atomic.Int64
	registered atomic.Int64
	isStopped  atomic.Bool

	closeOnce sync.Once
	log       *zap.SugaredLogger
}

func New[T any, K comparable, R any](opts Options[T, K, R]) (*Queue[T, K, R], error) {
	if opts.Processor == nil {
		return nil, fmt.Errorf("asyncqueue(%s): processor is required", opts.Name)
	}
	if opts.Parallelism < 0 {
		return nil, fmt.Errorf("asyncqueue(%s): invalid parallelism %d", opts.Name, opts.Parallelism)
	}

	parallelism := opts.Parallelism
	if parallelism == 0 {
		parallelism = DefaultParallelism
	}

	getKey := opts.GetKey
	if getKey == nil {
		if reflect.TypeFor[T]() != reflect.TypeFor[K]() {
			return nil, fmt.Errorf("asyncqueue(%s): GetKey is required when item type %s differs from key type %s",
				opts.Name, reflect.TypeFor[T](), reflect.TypeFor[K]())
		}
		getKey = func(item T) K {
			k, _ := any(item).(K)
			return k
		}
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Queue[T, K, R]{
		name:        opts.Name,
		parallelism: parallelism,
		processor:   opts.Processor,
		getKey:      getKey,
		ctx:         ctx,
		loop:        newLoop(),
		entries:     newRegistry[K, *entry[T, K, R]](),
		log:         zap.S().Named("asyncqueue").With("queue", opts.Name),
	}, nil
}

func (q *Queue[T, K, R]) Name() string { return q.name }

func (q *Queue[T, K, R]) Parallelism() int { return q.parallelism }

// Add admits item. The outcome is delivered to cb on a later turn, never from
// within Add itself. Items whose key is already known share the outcome of
// the existing run instead of starting a new one.
func (q *Queue[T, K, R]) Add(item T, cb Callback[R]) {
	if cb == nil {
		cb = func(R, error) {}
	}
	if !q.loop.post(func() { q.admit(item, cb) }) {
		// the loop is gone, so there is no later turn to use
		var zero R
		go cb(zero, ErrQueueStopped)
	}
}

// AddFuture is Add with the outcome delivered through a Future.
func (q *Queue[T, K, R]) AddFuture(item T) *Future[R] {
	c := make(chan Result[R], 1)
	q.Add(item, func(result R, err error) {
		c <- Result[R]{Data: result, Err: err}
	})
	return NewFuture(c)
}

// Stop refuses further admissions. Items already admitted still run.
func (q *Queue[T, K, R]) Stop() {
	q.loop.post(q.stop)
}

// Close stops the queue, waits for every admitted item to complete and
// releases the loop goroutine. It must not be called from a callback or a
// processor.
func (q *Queue[T, K, R]) Close() {
	q.closeOnce.Do(func() {
		idle := make(chan struct{})
		posted := q.loop.post(func() {
			q.stop()
			q.idle = append(q.idle, idle)
			q.notifyIdle()
		})
		if posted {
			<-idle
		}
		q.loop.shutdown()
	})
}

// Forget evicts the stored outcome for key so the next Add runs it again.
// Keys still queued or processing are left alone.
func (q *Queue[T, K, R]) Forget(key K) {
	q.loop.post(func() {
		e, ok := q.entries.lookup(key)
		if !ok || e.state != StateDone {
			return
		}
		q.entries.remove(key)
		q.publish()
	})
}

// Reset evicts every stored outcome.
func (q *Queue[T, K, R]) Reset() {
	q.loop.post(func() {
		n := q.entries.removeFunc(func(_ K, e *entry[T, K, R]) bool {
			return e.state == StateDone
		})
		q.log.Debugw("registry reset", "evicted", n)
		q.publish()
	})
}

func (q *Queue[T, K, R]) Stats() Stats {
	return Stats{
		Pending: int(q.pending.Load()),
		Active:  int(q.active.Load()),
		Entries: int(q.registered.Load()),
		Stopped: q.isStopped.Load(),
	}
}

func (q *Queue[T, K, R]) stop() {
	q.stopped = true
	q.isStopped.Store(true)
}

func (q *Queue[T, K, R]) admit(item T, cb Callback[R]) {
	if q.stopped {
		var zero R
		q.invoke(cb, zero, ErrQueueStopped)
		return
	}

	key, err := q.keyOf(item)
	if err != nil {
		var zero R
		q.invoke(cb, zero, err)
		return
	}

	if e, ok := q.entries.lookup(key); ok {
		if e.state == StateDone {
			q.invoke(cb, e.result, e.err)
			return
		}
		e.attach(cb)
		return
	}

	e := newEntry(item, key, cb)
	q.entries.register(key, e)
	q.queued.Push(e)
	q.publish()
	q.armDispatch()
}

func (q *Queue[T, K, R]) keyOf(item T) (key K, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("asyncqueue(%s): key derivation failed: %v", q.name, rec)
		}
	}()
	return q.getKey(item), nil
}

// armDispatch schedules one dispatch pass unless one is already pending.
func (q *Queue[T, K, R]) armDispatch() {
	if q.willEnsureProcessing {
		return
	}
	q.willEnsureProcessing = true
	q.loop.post(q.ensureProcessing)
}

// ensureProcessing is the dispatch pass. It moves entries from the pending
// queue to the processor while slots are free.
func (q *Queue[T, K, R]) ensureProcessing() {
	q.willEnsureProcessing = false

	for q.activeTasks < q.parallelism {
		e, ok := q.queued.Pop()
		if !ok {
			break
		}
		q.activeTasks++
		e.state = StateProcessing
		q.startProcessing(e)
	}

	q.publish()
	q.notifyIdle()
}

func (q *Queue[T, K, R]) startProcessing(e *entry[T, K, R]) {
	done := func(result R, err error) {
		if !e.reported.CompareAndSwap(false, true) {
			q.log.Warnw("processor reported completion more than once", "key", e.key)
			return
		}
		q.loop.post(func() { q.handleResult(e, result, err) })
	}

	defer func() {
		if rec := recover(); rec != nil {
			var zero R
			done(zero, &PanicError{Value: rec})
		}
	}()

	q.log.Debugw("dispatching", "key", e.key, "active", q.activeTasks)
	q.processor(q.ctx, e.item, done)
}

func (q *Queue[T, K, R]) handleResult(e *entry[T, K, R], result R, err error) {
	var pe *PanicError
	if errors.As(err, &pe) && !IsInvocationError(err) {
		err = &InvocationError{Name: q.name, Err: err}
	}

	callback, callbacks := e.complete(result, err)
	q.activeTasks--
	q.armDispatch()
	q.publish()

	if err != nil {
		q.log.Debugw("task failed", "key", e.key, "error", err)
	}

	q.invoke(callback, result, err)
	for _, cb := range callbacks {
		q.invoke(cb, result, err)
	}
}

// invoke runs a callback, containing any panic so the remaining callbacks
// and the loop keep going.
func (q *Queue[T, K, R]) invoke(cb Callback[R], result R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			q.log.Errorw("callback panicked", "panic", rec)
		}
	}()
	cb(result, err)
}

func (q *Queue[T, K, R]) notifyIdle() {
	if len(q.idle) == 0 || q.activeTasks > 0 || q.queued.Len() > 0 {
		return
	}
	for _, c := range q.idle {
		close(c)
	}
	q.idle = nil
}

func (q *Queue[T, K, R]) publish() {
	q.pending.Store(int64(q.queued.Len()))
	q.active.Store(int64(q.activeTasks))
	q.registered.Store(int64(q.entries.len()))
}
