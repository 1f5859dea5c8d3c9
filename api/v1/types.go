// Package v1 holds the wire types of the /api/v1 HTTP API and their
// conversions from internal models.
package v1

import "time"

// TaskRequest is the body of POST /tasks.
type TaskRequest struct {
	Key     string `json:"key" binding:"required"`
	Payload string `json:"payload"`
}

type TaskResultSource string

const (
	TaskResultSourcePayload TaskResultSource = "payload"
	TaskResultSourceUrl     TaskResultSource = "url"
)

// TaskResult is returned by POST /tasks.
type TaskResult struct {
	Key         string           `json:"key"`
	Digest      string           `json:"digest"`
	Size        int64            `json:"size"`
	Source      TaskResultSource `json:"source"`
	CompletedAt time.Time        `json:"completedAt"`
}

type TaskRecordStatus string

const (
	TaskRecordStatusSucceeded TaskRecordStatus = "succeeded"
	TaskRecordStatusFailed    TaskRecordStatus = "failed"
)

// TaskRecord is one stored execution.
type TaskRecord struct {
	Id          string           `json:"id"`
	Key         string           `json:"key"`
	Status      TaskRecordStatus `json:"status"`
	Digest      *string          `json:"digest,omitempty"`
	Size        *int64           `json:"size,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CompletedAt time.Time        `json:"completedAt"`
}

type TaskListResponse struct {
	Page      int          `json:"page"`
	PageCount int          `json:"pageCount"`
	Total     int          `json:"total"`
	Tasks     []TaskRecord `json:"tasks"`
}

// GetTasksParams are the query parameters of GET /tasks.
type GetTasksParams struct {
	Failed   *bool `form:"failed"`
	Page     *int  `form:"page"`
	PageSize *int  `form:"pageSize"`
}

type QueueStatus struct {
	Name        string `json:"name"`
	Parallelism int    `json:"parallelism"`
	Pending     int    `json:"pending"`
	Active      int    `json:"active"`
	Entries     int    `json:"entries"`
	Stopped     bool   `json:"stopped"`
}

type Error struct {
	Error string `json:"error"`
}
