// Package store implements the data access layer for the asyncqueue agent.
//
// The store keeps an audit log of task executions in DuckDB. It is written
// once per real processor run (duplicates folded by the queue are not
// recorded again) and read by the HTTP API. The queue itself never reads it:
// scheduler state is not persisted across restarts.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                         Store (facade)                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│                           TaskStore                             │
//	│                               ▼                                 │
//	│                         task_records                            │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Tables
//
// Created by migrations (internal/store/migrations/sql/):
//
//	┌────────────────────┬─────────────────────────────────────────────┐
//	│  Table             │  Purpose                                    │
//	├────────────────────┼─────────────────────────────────────────────┤
//	│  task_records      │  Last outcome per task key                  │
//	│  schema_migrations │  Migration version tracking                 │
//	└────────────────────┴─────────────────────────────────────────────┘
//
// Schema:
//
//	task_records (
//	    id            VARCHAR NOT NULL,        -- uuid of the execution
//	    task_key      VARCHAR PRIMARY KEY,
//	    digest        VARCHAR,
//	    size_bytes    BIGINT,
//	    error_message VARCHAR,                 -- '' on success
//	    completed_at  TIMESTAMP NOT NULL
//	)
//
// # TaskStore
//
// Methods:
//   - Save(ctx, rec) → error (UPSERT on task_key)
//   - Get(ctx, key) → *models.TaskRecord, ResourceNotFoundError when absent
//   - List(ctx, opts...) → []models.TaskRecord, newest first
//   - Count(ctx, opts...) → int
//   - Delete(ctx, key) → error
//
// Queries are built with squirrel. List and Count accept ListOption values:
//
//	records, err := s.Tasks().List(ctx,
//	    store.ByFailed(true),
//	    store.WithLimit(20),
//	    store.WithOffset(40),
//	)
//
// # Initialization Flow
//
//	db, err := store.NewDBFromFolder(cfg.Store.DataFolder)
//	err = migrations.Run(ctx, db)
//	s := store.NewStore(db)
package store
