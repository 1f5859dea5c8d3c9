package asyncqueue

import "sync/atomic"

// State is the lifecycle state of a queued task. It only moves forward:
// StateQueued, then StateProcessing, then StateDone.
type State int

const (
	// StateQueued - admitted and waiting for a free slot
	StateQueued State = iota
	// StateProcessing - handed to the processor
	StateProcessing
	// StateDone - outcome stored, callbacks delivered
	StateDone
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// entry tracks one logical task. Every field except reported is only touched
// from the loop goroutine.
type entry[T any, K comparable, R any] struct {
	item  T
	key   K
	state State

	// callback is bound at creation; callbacks collects later duplicate
	// submissions. Both are cleared once the outcome is stored.
	callback  Callback[R]
	callbacks []Callback[R]

	result R
	err    error

	// reported guards the processor continuation, which may be called from
	// any goroutine.
	reported atomic.Bool
}

func newEntry[T any, K comparable, R any](item T, key K, cb Callback[R]) *entry[T, K, R] {
	return &entry[T, K, R]{
		item:     item,
		key:      key,
		state:    StateQueued,
		callback: cb,
	}
}

func (e *entry[T, K, R]) attach(cb Callback[R]) {
	e.callbacks = append(e.callbacks, cb)
}

// complete stores the outcome and hands back the callbacks to notify.
func (e *entry[T, K, R]) complete(result R, err error) (Callback[R], []Callback[R]) {
	callback, callbacks := e.callback, e.callbacks

	e.state = StateDone
	e.callback = nil
	e.callbacks = nil
	e.result = result
	e.err = err

	return callback, callbacks
}
