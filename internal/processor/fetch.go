package processor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/internal/models"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
)

const defaultInitialInterval = 500 * time.Millisecond

type FetchOptions struct {
	Client *http.Client
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint
	// InitialInterval is the first backoff delay. Zero means 500ms.
	InitialInterval time.Duration
}

// Fetch downloads the URL held in the task payload and hashes the body.
// Transport errors and 5xx responses are retried with exponential backoff;
// any other non-2xx response fails immediately.
func Fetch(opts FetchOptions) Processor {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	interval := opts.InitialInterval
	if interval <= 0 {
		interval = defaultInitialInterval
	}

	return asyncqueue.ProcessFunc(func(ctx context.Context, t models.Task) (models.TaskResult, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = interval

		body, err := backoff.Retry(ctx, func() ([]byte, error) {
			return get(ctx, client, t.Payload)
		},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(opts.MaxRetries+1),
			backoff.WithNotify(func(err error, next time.Duration) {
				zap.S().Named("processor").Debugw("retrying fetch", "key", t.Key, "error", err, "next", next)
			}),
		)
		if err != nil {
			return models.TaskResult{}, fmt.Errorf("failed to fetch %q: %w", t.Payload, err)
		}

		return newResult(t.Key, body, models.ResultSourceURL), nil
	})
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	return io.ReadAll(resp.Body)
}
