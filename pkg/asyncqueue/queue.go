package asyncqueue

// compactThreshold is the number of consumed head slots after which the
// backing array is compacted.
const compactThreshold = 32

// queue is an unbounded FIFO. Popped slots are zeroed so consumed items are
// not kept alive by the backing array.
type queue[T any] struct {
	items []T
	head  int
}

func (q *queue[T]) Len() int { return len(q.items) - q.head }

func (q *queue[T]) Push(t T) {
	q.items = append(q.items, t)
}

// Pop removes and returns the head of the queue. The boolean is false when
// the queue is empty.
func (q *queue[T]) Pop() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	t := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return t, true
}
