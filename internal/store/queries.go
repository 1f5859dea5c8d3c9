package store

const (
	tableTaskRecords = "task_records"

	upsertTaskRecordSuffix = `
		ON CONFLICT (task_key) DO UPDATE SET
			id = EXCLUDED.id,
			digest = EXCLUDED.digest,
			size_bytes = EXCLUDED.size_bytes,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at`
)

var taskRecordColumns = []string{
	"id",
	"task_key",
	"digest",
	"size_bytes",
	"error_message",
	"completed_at",
}
