package v1

import (
	"github.com/kubev2v/asyncqueue/internal/models"
)

func NewTaskResultFromModel(r models.TaskResult) TaskResult {
	source := TaskResultSourcePayload
	if r.Source == models.ResultSourceURL {
		source = TaskResultSourceUrl
	}
	return TaskResult{
		Key:         r.Key,
		Digest:      r.Digest,
		Size:        r.Size,
		Source:      source,
		CompletedAt: r.CompletedAt,
	}
}

// NewTaskRecordFromModel converts a models.TaskRecord to an API TaskRecord.
// Digest and size are only set for successful executions.
func NewTaskRecordFromModel(rec models.TaskRecord) TaskRecord {
	apiRec := TaskRecord{
		Id:          rec.ID.String(),
		Key:         rec.Key,
		Status:      TaskRecordStatusSucceeded,
		CompletedAt: rec.CompletedAt,
	}

	if rec.Failed() {
		apiRec.Status = TaskRecordStatusFailed
		apiRec.Error = &rec.Error
		return apiRec
	}

	apiRec.Digest = &rec.Digest
	apiRec.Size = &rec.Size

	return apiRec
}

func (q *QueueStatus) FromModel(m models.QueueStats) {
	q.Name = m.Name
	q.Parallelism = m.Parallelism
	q.Pending = m.Pending
	q.Active = m.Active
	q.Entries = m.Entries
	q.Stopped = m.Stopped
}
