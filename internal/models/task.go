package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a unit of work submitted to the queue. Tasks with the same Key are
// executed once.
type Task struct {
	Key string
	// Payload is the raw data for the digest processor and a URL for the
	// fetch processor.
	Payload string
}

type ResultSource string

const (
	ResultSourcePayload ResultSource = "payload"
	ResultSourceURL     ResultSource = "url"
)

// TaskResult is the outcome of a successful execution.
type TaskResult struct {
	Key         string
	Digest      string
	Size        int64
	Source      ResultSource
	CompletedAt time.Time
}

// TaskRecord is the stored outcome of one execution, successful or not.
type TaskRecord struct {
	ID          uuid.UUID
	Key         string
	Digest      string
	Size        int64
	Error       string
	CompletedAt time.Time
}

func (r TaskRecord) Failed() bool {
	return r.Error != ""
}

// QueueStats mirrors the queue counters.
type QueueStats struct {
	Name        string
	Parallelism int
	Pending     int
	Active      int
	Entries     int
	Stopped     bool
}
