package asyncqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
)

type task struct {
	Key  int
	Name string
}

func byKey(t task) int { return t.Key }

var errAbandoned = errors.New("abandoned at teardown")

type outcome struct {
	Name   string
	Result string
	Err    error
}

// manualProcessor records dispatched tasks and holds their continuations
// until the test completes them.
type manualProcessor struct {
	mu      sync.Mutex
	started []int
	pending map[int]asyncqueue.Callback[string]
	calls   atomic.Int32
}

func newManualProcessor() *manualProcessor {
	return &manualProcessor{pending: make(map[int]asyncqueue.Callback[string])}
}

func (m *manualProcessor) Process(_ context.Context, t task, done asyncqueue.Callback[string]) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, t.Key)
	m.pending[t.Key] = done
}

func (m *manualProcessor) Started() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.started...)
}

func (m *manualProcessor) Complete(key int, result string, err error) {
	m.mu.Lock()
	done, ok := m.pending[key]
	delete(m.pending, key)
	m.mu.Unlock()
	Expect(ok).To(BeTrue(), "key %d was not dispatched", key)
	done(result, err)
}

// CompleteRemaining fails every continuation still held so Close can return.
func (m *manualProcessor) CompleteRemaining(err error) {
	m.mu.Lock()
	held := m.pending
	m.pending = make(map[int]asyncqueue.Callback[string])
	m.mu.Unlock()
	for _, done := range held {
		done("", err)
	}
}

// collector gathers callback outcomes from the loop goroutine.
type collector struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (c *collector) For(name string) asyncqueue.Callback[string] {
	return func(result string, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.outcomes = append(c.outcomes, outcome{Name: name, Result: result, Err: err})
	}
}

func (c *collector) Outcomes() []outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outcome(nil), c.outcomes...)
}

func (c *collector) Named(name string) []outcome {
	var out []outcome
	for _, o := range c.Outcomes() {
		if o.Name == name {
			out = append(out, o)
		}
	}
	return out
}

var _ = Describe("Queue", func() {
	var (
		q    *asyncqueue.Queue[task, int, string]
		proc *manualProcessor
		col  *collector
	)

	newQueue := func(parallelism int, processor asyncqueue.Processor[task, string]) *asyncqueue.Queue[task, int, string] {
		queue, err := asyncqueue.New(asyncqueue.Options[task, int, string]{
			Name:        "test",
			Parallelism: parallelism,
			Processor:   processor,
			GetKey:      byKey,
		})
		Expect(err).NotTo(HaveOccurred())
		return queue
	}

	BeforeEach(func() {
		proc = newManualProcessor()
		col = &collector{}
	})

	AfterEach(func() {
		if q == nil {
			return
		}
		// keep releasing held continuations, including ones dispatched
		// while closing, until Close returns
		closed := make(chan struct{})
		go func() {
			for {
				select {
				case <-closed:
					return
				default:
					proc.CompleteRemaining(errAbandoned)
					time.Sleep(time.Millisecond)
				}
			}
		}()
		q.Close()
		close(closed)
		q = nil
	})

	Describe("New", func() {
		It("should require a processor", func() {
			_, err := asyncqueue.New(asyncqueue.Options[int, int, string]{Name: "test"})
			Expect(err).To(MatchError(ContainSubstring("processor is required")))
		})

		It("should reject negative parallelism", func() {
			_, err := asyncqueue.New(asyncqueue.Options[task, int, string]{
				Processor:   proc.Process,
				GetKey:      byKey,
				Parallelism: -1,
			})
			Expect(err).To(MatchError(ContainSubstring("invalid parallelism")))
		})

		It("should require GetKey when item and key types differ", func() {
			_, err := asyncqueue.New(asyncqueue.Options[task, int, string]{Processor: proc.Process})
			Expect(err).To(MatchError(ContainSubstring("GetKey is required")))
		})

		It("should use the item as its own key and the default parallelism", func() {
			calls := atomic.Int32{}
			iq, err := asyncqueue.New(asyncqueue.Options[string, string, string]{
				Processor: asyncqueue.ProcessFunc(func(_ context.Context, s string) (string, error) {
					calls.Add(1)
					return s + "!", nil
				}),
			})
			Expect(err).NotTo(HaveOccurred())
			defer iq.Close()
			Expect(iq.Parallelism()).To(Equal(asyncqueue.DefaultParallelism))

			first := iq.AddFuture("a")
			second := iq.AddFuture("a")
			for _, f := range []*asyncqueue.Future[string]{first, second} {
				v, err := f.Wait(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(Equal("a!"))
			}
			Expect(calls.Load()).To(BeNumerically("==", 1))
		})
	})

	Describe("Add", func() {
		It("should deliver the processor result through a future", func() {
			q = newQueue(1, asyncqueue.ProcessFunc(func(_ context.Context, t task) (string, error) {
				return fmt.Sprintf("%s-%d", t.Name, t.Key*2), nil
			}))

			future := q.AddFuture(task{Key: 21, Name: "answer"})

			var result asyncqueue.Result[string]
			Eventually(future.C(), 2*time.Second).Should(Receive(&result))
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Data).To(Equal("answer-42"))
		})

		// Given parallelism 2 and keys 1,2,3,1,4,5
		// When the tasks complete one by one
		// Then five runs happen and both key 1 callbacks see the same result
		It("should fold duplicates and respect admission order", func() {
			q = newQueue(2, proc.Process)

			for i, k := range []int{1, 2, 3, 1, 4, 5} {
				name := fmt.Sprintf("item%d", i+1)
				q.Add(task{Key: k, Name: name}, col.For(name))
			}

			Eventually(proc.Started, time.Second).Should(Equal([]int{1, 2}))
			Consistently(proc.Started, 100*time.Millisecond).Should(HaveLen(2))

			proc.Complete(1, "r1", nil)
			Eventually(proc.Started, time.Second).Should(Equal([]int{1, 2, 3}))

			proc.Complete(2, "r2", nil)
			Eventually(proc.Started, time.Second).Should(Equal([]int{1, 2, 3, 4}))

			proc.Complete(3, "r3", nil)
			Eventually(proc.Started, time.Second).Should(Equal([]int{1, 2, 3, 4, 5}))

			proc.Complete(4, "r4", nil)
			proc.Complete(5, "r5", nil)

			Eventually(col.Outcomes, time.Second).Should(HaveLen(6))
			Expect(proc.calls.Load()).To(BeNumerically("==", 5))
			Expect(col.Named("item1")).To(ConsistOf(outcome{Name: "item1", Result: "r1"}))
			Expect(col.Named("item4")).To(ConsistOf(outcome{Name: "item4", Result: "r1"}))
		})

		It("should invoke the primary callback before secondary ones", func() {
			q = newQueue(1, proc.Process)

			q.Add(task{Key: 7}, col.For("first"))
			q.Add(task{Key: 7}, col.For("second"))
			q.Add(task{Key: 7}, col.For("third"))

			Eventually(proc.Started, time.Second).Should(Equal([]int{7}))
			proc.Complete(7, "done", nil)

			Eventually(col.Outcomes, time.Second).Should(HaveLen(3))
			names := []string{}
			for _, o := range col.Outcomes() {
				names = append(names, o.Name)
			}
			Expect(names).To(Equal([]string{"first", "second", "third"}))
		})

		It("should give every duplicate the identical failure", func() {
			q = newQueue(1, proc.Process)
			boom := errors.New("boom")

			q.Add(task{Key: 1}, col.For("a"))
			q.Add(task{Key: 1}, col.For("b"))
			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(1, "", boom)

			Eventually(col.Outcomes, time.Second).Should(HaveLen(2))
			for _, o := range col.Outcomes() {
				Expect(o.Err).To(BeIdenticalTo(boom))
			}
		})

		It("should serve a completed key from the stored outcome", func() {
			q = newQueue(1, proc.Process)

			q.Add(task{Key: 3}, col.For("first"))
			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(3, "cached", nil)
			Eventually(col.Outcomes, time.Second).Should(HaveLen(1))

			q.Add(task{Key: 3}, col.For("late"))

			Eventually(func() []outcome { return col.Named("late") }, time.Second).
				Should(ConsistOf(outcome{Name: "late", Result: "cached"}))
			Expect(proc.calls.Load()).To(BeNumerically("==", 1))
		})

		// Given a callback running on the queue's loop
		// When it adds a key whose outcome is already stored
		// Then the new callback runs only after the current one returns
		It("should never invoke a callback from within Add", func() {
			q = newQueue(1, proc.Process)
			var order []string
			finished := make(chan struct{})

			q.Add(task{Key: 1}, func(string, error) {
				q.Add(task{Key: 1}, func(string, error) {
					order = append(order, "cached")
					close(finished)
				})
				order = append(order, "after-add")
			})
			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(1, "x", nil)

			Eventually(finished, time.Second).Should(BeClosed())
			Expect(order).To(Equal([]string{"after-add", "cached"}))
		})

		It("should deliver exactly one callback per Add", func() {
			var calls atomic.Int32
			q = newQueue(3, asyncqueue.ProcessFunc(func(_ context.Context, t task) (string, error) {
				calls.Add(1)
				time.Sleep(time.Millisecond)
				return fmt.Sprint(t.Key), nil
			}))

			var delivered atomic.Int32
			for i := range 50 {
				key := i % 7
				q.Add(task{Key: key}, func(result string, err error) {
					defer GinkgoRecover()
					Expect(err).NotTo(HaveOccurred())
					Expect(result).To(Equal(fmt.Sprint(key)))
					delivered.Add(1)
				})
			}

			Eventually(delivered.Load, 2*time.Second).Should(BeNumerically("==", 50))
			Consistently(delivered.Load, 100*time.Millisecond).Should(BeNumerically("==", 50))
			Expect(calls.Load()).To(BeNumerically("==", 7))
		})
	})

	Describe("Parallelism", func() {
		It("should never run more than the configured number of tasks", func() {
			var current, peak atomic.Int32
			q = newQueue(3, asyncqueue.ProcessFunc(func(_ context.Context, t task) (string, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return "", nil
			}))

			var delivered atomic.Int32
			for i := range 30 {
				q.Add(task{Key: i}, func(string, error) { delivered.Add(1) })
			}

			Eventually(delivered.Load, 5*time.Second).Should(BeNumerically("==", 30))
			Expect(peak.Load()).To(BeNumerically("<=", 3))
			Expect(peak.Load()).To(BeNumerically(">", 0))
		})

		It("should dispatch the third task only after a slot frees up", func() {
			q = newQueue(2, proc.Process)

			q.Add(task{Key: 'A'}, col.For("A"))
			q.Add(task{Key: 'B'}, col.For("B"))
			q.Add(task{Key: 'C'}, col.For("C"))

			Eventually(proc.Started, time.Second).Should(Equal([]int{'A', 'B'}))
			Eventually(q.Stats, time.Second).Should(Equal(asyncqueue.Stats{Pending: 1, Active: 2, Entries: 3}))

			proc.Complete('B', "b", nil)
			Eventually(proc.Started, time.Second).Should(Equal([]int{'A', 'B', 'C'}))

			proc.Complete('A', "a", nil)
			proc.Complete('C', "c", nil)
			Eventually(col.Outcomes, time.Second).Should(ConsistOf(
				outcome{Name: "A", Result: "a"},
				outcome{Name: "B", Result: "b"},
				outcome{Name: "C", Result: "c"},
			))
			Eventually(q.Stats, time.Second).Should(Equal(asyncqueue.Stats{Entries: 3}))
		})

		It("should drain synchronously completing tasks without deep recursion", func() {
			q = newQueue(1, func(_ context.Context, t task, done asyncqueue.Callback[string]) {
				done(fmt.Sprint(t.Key), nil)
			})

			var delivered atomic.Int32
			for i := range 10000 {
				q.Add(task{Key: i}, func(string, error) { delivered.Add(1) })
			}

			Eventually(delivered.Load, 10*time.Second).Should(BeNumerically("==", 10000))
		})
	})

	Describe("Stop", func() {
		It("should fail later additions without running the processor", func() {
			q = newQueue(1, proc.Process)
			q.Stop()

			q.Add(task{Key: 1}, col.For("late"))

			Eventually(col.Outcomes, time.Second).Should(HaveLen(1))
			Expect(col.Outcomes()[0].Err).To(MatchError(asyncqueue.ErrQueueStopped))
			Expect(proc.calls.Load()).To(BeNumerically("==", 0))
			Expect(q.Stats().Stopped).To(BeTrue())
		})

		It("should fail a completed key too once stopped", func() {
			q = newQueue(1, proc.Process)
			q.Add(task{Key: 1}, col.For("first"))
			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(1, "ok", nil)
			Eventually(col.Outcomes, time.Second).Should(HaveLen(1))

			q.Stop()
			q.Add(task{Key: 1}, col.For("late"))

			Eventually(func() []outcome { return col.Named("late") }, time.Second).Should(HaveLen(1))
			Expect(col.Named("late")[0].Err).To(MatchError(asyncqueue.ErrQueueStopped))
		})

		// Given one task processing and one queued
		// When the queue is stopped
		// Then both still complete while new additions fail
		It("should let admitted work finish", func() {
			q = newQueue(1, proc.Process)
			q.Add(task{Key: 1}, col.For("running"))
			q.Add(task{Key: 2}, col.For("queued"))
			Eventually(proc.Started, time.Second).Should(Equal([]int{1}))

			q.Stop()
			q.Add(task{Key: 3}, col.For("rejected"))
			q.Add(task{Key: 2}, col.For("duplicate"))

			Eventually(func() []outcome { return col.Named("rejected") }, time.Second).Should(HaveLen(1))
			Expect(col.Named("rejected")[0].Err).To(MatchError(asyncqueue.ErrQueueStopped))
			Eventually(func() []outcome { return col.Named("duplicate") }, time.Second).Should(HaveLen(1))

			proc.Complete(1, "one", nil)
			Eventually(proc.Started, time.Second).Should(Equal([]int{1, 2}))
			proc.Complete(2, "two", nil)

			Eventually(func() []outcome { return col.Named("queued") }, time.Second).
				Should(ConsistOf(outcome{Name: "queued", Result: "two"}))
			Expect(col.Named("running")).To(ConsistOf(outcome{Name: "running", Result: "one"}))
			Expect(proc.Started()).NotTo(ContainElement(3))
		})
	})

	Describe("Close", func() {
		It("should wait for in-flight work to finish", func() {
			q = newQueue(1, proc.Process)
			q.Add(task{Key: 1}, col.For("a"))
			Eventually(proc.Started, time.Second).Should(HaveLen(1))

			closeDone := make(chan struct{})
			go func() {
				q.Close()
				close(closeDone)
			}()

			Consistently(closeDone, 200*time.Millisecond).ShouldNot(BeClosed())
			proc.Complete(1, "done", nil)
			Eventually(closeDone, time.Second).Should(BeClosed())
			Expect(col.Outcomes()).To(ConsistOf(outcome{Name: "a", Result: "done"}))
		})

		It("should return stopped when Add is called after Close", func() {
			q = newQueue(1, proc.Process)
			q.Close()

			future := q.AddFuture(task{Key: 1})

			var result asyncqueue.Result[string]
			Eventually(future.C(), time.Second).Should(Receive(&result))
			Expect(result.Err).To(MatchError(asyncqueue.ErrQueueStopped))
		})

		It("should deliver stopped after Close from outside Add", func() {
			q = newQueue(1, proc.Process)
			q.Close()

			returned := make(chan struct{})
			afterReturn := make(chan bool, 1)
			q.Add(task{Key: 1}, func(_ string, err error) {
				select {
				case <-returned:
					afterReturn <- errors.Is(err, asyncqueue.ErrQueueStopped)
				case <-time.After(time.Second):
					afterReturn <- false
				}
			})
			close(returned)

			Eventually(afterReturn, 2*time.Second).Should(Receive(BeTrue()))
		})

		It("should be idempotent", func() {
			q = newQueue(1, proc.Process)
			q.Close()
			Expect(q.Close).NotTo(Panic())
		})
	})

	Describe("Errors", func() {
		It("should forward processor failures unchanged", func() {
			boom := errors.New("boom")
			q = newQueue(1, asyncqueue.ProcessFunc(func(context.Context, task) (string, error) {
				return "", boom
			}))

			_, err := q.AddFuture(task{Key: 1}).Wait(context.Background())
			Expect(err).To(BeIdenticalTo(boom))
			Expect(asyncqueue.IsInvocationError(err)).To(BeFalse())
		})

		It("should wrap a panicking processor with the queue name and keep going", func() {
			q = newQueue(1, func(_ context.Context, t task, done asyncqueue.Callback[string]) {
				if t.Key == 1 {
					panic("bad processor")
				}
				done("fine", nil)
			})

			_, err := q.AddFuture(task{Key: 1}).Wait(context.Background())
			Expect(asyncqueue.IsInvocationError(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("asyncqueue(test)")))

			var pe *asyncqueue.PanicError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Value).To(Equal("bad processor"))

			v, err := q.AddFuture(task{Key: 2}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("fine"))
			Eventually(func() int { return q.Stats().Active }, time.Second).Should(Equal(0))
		})

		It("should wrap a panic inside a ProcessFunc", func() {
			q = newQueue(1, asyncqueue.ProcessFunc(func(context.Context, task) (string, error) {
				panic("in goroutine")
			}))

			_, err := q.AddFuture(task{Key: 1}).Wait(context.Background())
			var ie *asyncqueue.InvocationError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Name).To(Equal("test"))
		})

		It("should ignore a second completion report", func() {
			var delivered atomic.Int32
			q = newQueue(1, func(_ context.Context, _ task, done asyncqueue.Callback[string]) {
				done("first", nil)
				done("second", nil)
			})

			var got atomic.Value
			q.Add(task{Key: 1}, func(result string, _ error) {
				got.Store(result)
				delivered.Add(1)
			})

			Eventually(delivered.Load, time.Second).Should(BeNumerically("==", 1))
			Consistently(delivered.Load, 100*time.Millisecond).Should(BeNumerically("==", 1))
			Expect(got.Load()).To(Equal("first"))
		})

		It("should keep notifying after a callback panics", func() {
			q = newQueue(1, proc.Process)
			q.Add(task{Key: 1}, func(string, error) { panic("bad callback") })
			q.Add(task{Key: 1}, col.For("second"))

			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(1, "ok", nil)

			Eventually(col.Outcomes, time.Second).Should(ConsistOf(outcome{Name: "second", Result: "ok"}))
		})

		It("should report a panicking key function through the callback", func() {
			kq, err := asyncqueue.New(asyncqueue.Options[task, int, string]{
				Name:      "keys",
				Processor: proc.Process,
				GetKey:    func(task) int { panic("no key") },
			})
			Expect(err).NotTo(HaveOccurred())
			defer kq.Close()

			_, err = kq.AddFuture(task{Key: 1}).Wait(context.Background())
			Expect(err).To(MatchError(ContainSubstring("key derivation failed")))
		})
	})

	Describe("Forget and Reset", func() {
		It("should run a forgotten key again", func() {
			var calls atomic.Int32
			q = newQueue(1, asyncqueue.ProcessFunc(func(context.Context, task) (string, error) {
				return fmt.Sprint(calls.Add(1)), nil
			}))

			v, err := q.AddFuture(task{Key: 1}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("1"))

			q.Forget(1)
			v, err = q.AddFuture(task{Key: 1}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("2"))
		})

		It("should not forget a key that is still processing", func() {
			q = newQueue(1, proc.Process)
			q.Add(task{Key: 1}, col.For("a"))
			Eventually(proc.Started, time.Second).Should(HaveLen(1))

			q.Forget(1)
			q.Add(task{Key: 1}, col.For("b"))
			proc.Complete(1, "once", nil)

			Eventually(col.Outcomes, time.Second).Should(HaveLen(2))
			Expect(proc.calls.Load()).To(BeNumerically("==", 1))
		})

		It("should evict every stored outcome on Reset", func() {
			q = newQueue(2, asyncqueue.ProcessFunc(func(context.Context, task) (string, error) {
				return "", nil
			}))
			for i := range 4 {
				_, err := q.AddFuture(task{Key: i}).Wait(context.Background())
				Expect(err).NotTo(HaveOccurred())
			}
			Eventually(func() int { return q.Stats().Entries }, time.Second).Should(Equal(4))

			q.Reset()

			Eventually(func() int { return q.Stats().Entries }, time.Second).Should(Equal(0))
		})
	})

	Describe("Future", func() {
		It("should stop waiting when the context ends", func() {
			q = newQueue(1, proc.Process)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := q.AddFuture(task{Key: 1}).Wait(ctx)
			Expect(err).To(MatchError(context.DeadlineExceeded))

			Eventually(proc.Started, time.Second).Should(HaveLen(1))
			proc.Complete(1, "late", nil)
		})
	})
})
