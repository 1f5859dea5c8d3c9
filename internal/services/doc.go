// Package services implements the business logic layer for the asyncqueue agent.
//
// # Service Dependency Graph
//
//	Handlers (HTTP endpoints)
//	    │
//	    ▼
//	TaskService ──► asyncqueue.Queue ──► processor (digest | fetch)
//	    │                                   │
//	    └──────────► Store ◄────────────────┘ (one record per execution)
//
// # TaskService
//
// TaskService owns the queue. Submissions are keyed by Task.Key: concurrent
// submissions of the same key share one processor run, and a key that has
// already completed is answered from the queue's stored outcome until it is
// forgotten.
//
// The processor handed to the queue is wrapped so that each real execution is
// written to the store before any caller is notified. A GET right after a
// successful POST therefore always finds the record.
//
// Lifecycle:
//
//	svc, err := services.NewTaskService(cfg.Queue, proc, st)
//	result, err := svc.Submit(ctx, models.Task{Key: "a", Payload: "..."})
//	svc.Stop()  // refuse new submissions
//	svc.Close() // wait for running tasks
//
// Errors from Submit:
//   - InvalidTaskError: the task has no key
//   - asyncqueue.ErrQueueStopped: the service is stopping
//   - the processor's own error, or an *asyncqueue.InvocationError
//   - ctx.Err() when the caller gives up waiting (the task keeps running)
package services
