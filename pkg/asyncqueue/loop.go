package asyncqueue

import "sync"

// loop is the single goroutine that owns all queue state. Work reaches it as
// turns: functions posted to an unbounded mailbox and run one at a time in
// posting order.
//
// post never blocks, so code already running on the loop (callbacks,
// processors) may post further turns without deadlocking.
type loop struct {
	mu     sync.Mutex
	turns  queue[func()]
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newLoop() *loop {
	l := &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// post schedules fn on a later turn. It returns false once the loop has been
// shut down.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.turns.Push(fn)
	l.mu.Unlock()

	l.signal()
	return true
}

func (l *loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// shutdown refuses new turns, lets the loop drain the ones already posted and
// waits for the goroutine to exit.
func (l *loop) shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.signal()
	<-l.done
}

func (l *loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		fn, ok := l.turns.Pop()
		closed := l.closed
		l.mu.Unlock()

		if ok {
			fn()
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}
