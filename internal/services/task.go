package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/models"
	"github.com/kubev2v/asyncqueue/internal/processor"
	"github.com/kubev2v/asyncqueue/internal/store"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
	srvErrors "github.com/kubev2v/asyncqueue/pkg/errors"
)

const saveTimeout = 5 * time.Second

type TaskQueue = asyncqueue.Queue[models.Task, string, models.TaskResult]

type TaskService struct {
	queue *TaskQueue
	store *store.Store
}

func NewTaskService(cfg config.Queue, p processor.Processor, st *store.Store) (*TaskService, error) {
	s := &TaskService{store: st}

	q, err := asyncqueue.New(asyncqueue.Options[models.Task, string, models.TaskResult]{
		Name:        cfg.Name,
		Parallelism: cfg.Parallelism,
		Processor:   s.recording(cfg.Name, p),
		GetKey:      func(t models.Task) string { return t.Key },
	})
	if err != nil {
		return nil, err
	}
	s.queue = q

	return s, nil
}

// Submit runs the task, or joins the run already in progress for its key,
// and waits for the outcome.
func (s *TaskService) Submit(ctx context.Context, task models.Task) (*models.TaskResult, error) {
	if task.Key == "" {
		return nil, srvErrors.NewInvalidTaskError("key is required")
	}

	result, err := s.queue.AddFuture(task).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *TaskService) Get(ctx context.Context, key string) (*models.TaskRecord, error) {
	return s.store.Tasks().Get(ctx, key)
}

type TaskListParams struct {
	Failed *bool
	Limit  uint64
	Offset uint64
}

type TaskListResult struct {
	Records []models.TaskRecord
	Total   int
}

func (s *TaskService) List(ctx context.Context, params TaskListParams) (*TaskListResult, error) {
	var filters []store.ListOption
	if params.Failed != nil {
		filters = append(filters, store.ByFailed(*params.Failed))
	}

	opts := append([]store.ListOption{}, filters...)
	if params.Limit > 0 {
		opts = append(opts, store.WithLimit(params.Limit))
	}
	if params.Offset > 0 {
		opts = append(opts, store.WithOffset(params.Offset))
	}

	records, err := s.store.Tasks().List(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// Get total count without pagination
	total, err := s.store.Tasks().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	return &TaskListResult{Records: records, Total: total}, nil
}

// Forget drops the cached outcome and the stored record for key so the next
// submission runs it again.
func (s *TaskService) Forget(ctx context.Context, key string) error {
	s.queue.Forget(key)
	return s.store.Tasks().Delete(ctx, key)
}

func (s *TaskService) Stats() models.QueueStats {
	st := s.queue.Stats()
	return models.QueueStats{
		Name:        s.queue.Name(),
		Parallelism: s.queue.Parallelism(),
		Pending:     st.Pending,
		Active:      st.Active,
		Entries:     st.Entries,
		Stopped:     st.Stopped,
	}
}

// Stop refuses new submissions; running tasks still finish.
func (s *TaskService) Stop() {
	s.queue.Stop()
}

// Close stops the queue and waits for running tasks.
func (s *TaskService) Close() {
	s.queue.Close()
}

// recording wraps p so every real execution is saved before its callers are
// notified, panics included. The save runs on its own goroutine since p may
// report from the queue's loop.
func (s *TaskService) recording(name string, p processor.Processor) processor.Processor {
	return func(ctx context.Context, t models.Task, done asyncqueue.Callback[models.TaskResult]) {
		var once sync.Once
		report := func(r models.TaskResult, err error) {
			var pe *asyncqueue.PanicError
			if errors.As(err, &pe) && !asyncqueue.IsInvocationError(err) {
				err = &asyncqueue.InvocationError{Name: name, Err: err}
			}
			once.Do(func() {
				go func() {
					s.record(t, r, err)
					done(r, err)
				}()
			})
		}

		defer func() {
			if rec := recover(); rec != nil {
				report(models.TaskResult{}, &asyncqueue.PanicError{Value: rec})
			}
		}()

		p(ctx, t, report)
	}
}

func (s *TaskService) record(t models.Task, r models.TaskResult, err error) {
	rec := models.TaskRecord{
		ID:          uuid.New(),
		Key:         t.Key,
		Digest:      r.Digest,
		Size:        r.Size,
		CompletedAt: r.CompletedAt,
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	if err != nil {
		rec.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if saveErr := s.store.Tasks().Save(ctx, rec); saveErr != nil {
		zap.S().Named("task_service").Errorw("failed to save task record", "key", t.Key, "error", saveErr)
	}
}
