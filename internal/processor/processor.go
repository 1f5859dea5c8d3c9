package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/kubev2v/asyncqueue/internal/config"
	"github.com/kubev2v/asyncqueue/internal/models"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
)

type Processor = asyncqueue.Processor[models.Task, models.TaskResult]

// New builds the processor selected by cfg.Kind.
func New(cfg config.Processor) (Processor, error) {
	switch cfg.Kind {
	case config.ProcessorDigest:
		return Digest(cfg.Latency), nil
	case config.ProcessorFetch:
		return Fetch(FetchOptions{
			Client:     &http.Client{Timeout: cfg.RequestTimeout},
			MaxRetries: cfg.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown processor %q", cfg.Kind)
	}
}

// Digest hashes the task payload after waiting latency.
func Digest(latency time.Duration) Processor {
	return asyncqueue.ProcessFunc(func(ctx context.Context, t models.Task) (models.TaskResult, error) {
		if latency > 0 {
			timer := time.NewTimer(latency)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return models.TaskResult{}, ctx.Err()
			case <-timer.C:
			}
		}

		return newResult(t.Key, []byte(t.Payload), models.ResultSourcePayload), nil
	})
}

func newResult(key string, data []byte, source models.ResultSource) models.TaskResult {
	sum := sha256.Sum256(data)
	return models.TaskResult{
		Key:         key,
		Digest:      hex.EncodeToString(sum[:]),
		Size:        int64(len(data)),
		Source:      source,
		CompletedAt: time.Now().UTC(),
	}
}
