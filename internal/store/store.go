package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DBFileName is the DuckDB file created inside the configured data folder.
const DBFileName = "asyncqueue.duckdb"

// Querier is the subset of *sql.DB used by the stores.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides access to all storage repositories.
type Store struct {
	db    *sql.DB
	tasks *TaskStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		tasks: NewTaskStore(db),
	}
}

func (s *Store) Tasks() *TaskStore {
	return s.tasks
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewDB opens a DuckDB database. ":memory:" and "" open an in-memory database.
func NewDB(path string) (*sql.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = ""
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb: %w", err)
	}
	return db, nil
}

// NewDBFromFolder opens the database file inside folder, creating the folder
// if needed. An empty folder opens an in-memory database.
func NewDBFromFolder(folder string) (*sql.DB, error) {
	if folder == "" {
		return NewDB(":memory:")
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data folder: %w", err)
	}
	return NewDB(filepath.Join(folder, DBFileName))
}
