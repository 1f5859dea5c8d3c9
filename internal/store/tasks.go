package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/kubev2v/asyncqueue/internal/models"
	srvErrors "github.com/kubev2v/asyncqueue/pkg/errors"
)

// TaskStore persists the outcome of every task execution, one row per key.
type TaskStore struct {
	db Querier
}

func NewTaskStore(db Querier) *TaskStore {
	return &TaskStore{db: db}
}

// Save stores or replaces the record for rec.Key.
func (s *TaskStore) Save(ctx context.Context, rec models.TaskRecord) error {
	query, args, err := sq.Insert(tableTaskRecords).
		Columns(taskRecordColumns...).
		Values(rec.ID.String(), rec.Key, rec.Digest, rec.Size, rec.Error, rec.CompletedAt.UTC()).
		Suffix(upsertTaskRecordSuffix).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// Get returns the record for key or a ResourceNotFoundError.
func (s *TaskStore) Get(ctx context.Context, key string) (*models.TaskRecord, error) {
	query, args, err := sq.Select(taskRecordColumns...).
		From(tableTaskRecords).
		Where(sq.Eq{"task_key": key}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rec, err := scanTaskRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, srvErrors.NewTaskNotFoundError(key)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *TaskStore) List(ctx context.Context, opts ...ListOption) ([]models.TaskRecord, error) {
	builder := sq.Select(taskRecordColumns...).
		From(tableTaskRecords).
		OrderBy("completed_at DESC", "task_key")

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TaskRecord
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (s *TaskStore) Count(ctx context.Context, opts ...ListOption) (int, error) {
	builder := sq.Select("COUNT(*)").From(tableTaskRecords)

	for _, opt := range opts {
		builder = opt(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *TaskStore) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(tableTaskRecords).Where(sq.Eq{"task_key": key}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRecord(row scanner) (*models.TaskRecord, error) {
	var (
		rec models.TaskRecord
		id  string
	)
	if err := row.Scan(&id, &rec.Key, &rec.Digest, &rec.Size, &rec.Error, &rec.CompletedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.CompletedAt = rec.CompletedAt.UTC()
	return &rec, nil
}

type ListOption func(sq.SelectBuilder) sq.SelectBuilder

// ByFailed keeps failed records when failed is true and successful ones otherwise.
func ByFailed(failed bool) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		if failed {
			return b.Where(sq.NotEq{"error_message": ""})
		}
		return b.Where(sq.Eq{"error_message": ""})
	}
}

func WithLimit(limit uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Limit(limit)
	}
}

func WithOffset(offset uint64) ListOption {
	return func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Offset(offset)
	}
}
