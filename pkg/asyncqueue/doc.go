// Package asyncqueue implements a keyed, deduplicating task queue with bounded
// concurrency.
//
// Items are submitted with Add together with a callback. The queue derives a
// key from every item; items sharing a key are folded into a single run of the
// processor and every caller receives the same outcome. At most Parallelism
// items are handed to the processor at any time.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                              Queue                                  │
//	│                                                                     │
//	│   Add(item, cb)                                                     │
//	│        │                                                            │
//	│        ▼                                                            │
//	│  ┌───────────┐   key seen?   ┌──────────────────────────────────┐   │
//	│  │  admit()  │──────────────►│ Registry  key ──► entry          │   │
//	│  └─────┬─────┘               └──────────────────────────────────┘   │
//	│        │ new key                                                    │
//	│        ▼                                                            │
//	│  ┌─────────────────────────────────────────────────────────┐        │
//	│  │                     Pending Queue                        │        │
//	│  │  [entry1] [entry2] [entry3] ...                          │        │
//	│  └─────────────────────────────┬───────────────────────────┘        │
//	│                                │                                    │
//	│                      ┌─────────┴──────────┐                         │
//	│                      │ ensureProcessing() │  while active < limit   │
//	│                      └─────────┬──────────┘                         │
//	│                                ▼                                    │
//	│                     processor(ctx, item, done)                      │
//	│                                │                                    │
//	│                                ▼                                    │
//	│                      ┌────────────────────┐                         │
//	│                      │  handleResult()    │──► cb, cb2, cb3 ...     │
//	│                      └────────────────────┘                         │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Event Loop
//
// All queue state (pending queue, registry, active counter, entry states) is
// owned by a single goroutine. Every operation reaches it as a turn posted to
// an unbounded mailbox:
//
//	Add        ──► post(admit)
//	Stop       ──► post(stop)
//	done(r, e) ──► post(handleResult)
//	(armed)    ──► post(ensureProcessing)
//
// Posting never blocks, so callbacks and processors running on the loop may
// call Add freely. Because admission itself is a posted turn, a callback is
// never invoked from within Add, including for cached outcomes and for a
// stopped queue.
//
// # Entry Lifecycle
//
//	┌────────┐  dispatch   ┌────────────┐  done(r, e)  ┌──────┐
//	│ Queued │────────────►│ Processing │─────────────►│ Done │
//	└────────┘             └────────────┘              └──────┘
//
// A Done entry stays in the registry: a later Add for the same key receives
// the stored outcome without running the processor again. Use Forget or
// Reset to evict stored outcomes.
//
// # Dispatch Re-arming
//
// Completion never calls the dispatch pass directly. It sets a flag and posts
// one pass for a later turn; further completions before that pass runs do not
// post another. The flag is cleared when the pass starts. Synchronous
// completions therefore cannot grow the call stack, however many there are.
//
// # Errors
//
//   - ErrQueueStopped: the item was added after Stop or Close.
//   - Errors reported by the processor through done are forwarded unchanged.
//   - *InvocationError: the processor panicked. It carries the queue name and
//     wraps a *PanicError with the recovered value.
//
// A failing processor only affects the entries it was given; the slot is
// released and dispatch continues.
//
// # Usage Example
//
//	q, err := asyncqueue.New(asyncqueue.Options[Module, string, *Result]{
//	    Name:        "build",
//	    Parallelism: 2,
//	    Processor:   asyncqueue.ProcessFunc(buildModule),
//	    GetKey:      func(m Module) string { return m.Path },
//	})
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	q.Add(module, func(r *Result, err error) {
//	    // runs on the queue's loop goroutine; must not block
//	})
//
//	// or
//	result, err := q.AddFuture(module).Wait(ctx)
package asyncqueue
