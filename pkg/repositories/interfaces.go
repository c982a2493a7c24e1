// Package repositories defines interfaces for data access operations.
package repositories

import (
	"context"
	"time"

	"github.com/TFMV/quarry/pkg/models"
)

// Cursor is a handle over a statement's output. Close releases the
// backend resources; callers must close on every path, including after
// a failed fetch.
type Cursor interface {
	// Descriptors returns per-column metadata for the result.
	Descriptors() []models.ColumnDescriptor
	// FetchAll reads the remaining rows into memory.
	FetchAll() ([][]interface{}, error)
	// Close releases the cursor.
	Close() error
}

// Connection executes final SQL text against a backend.
type Connection interface {
	// Execute runs the statement and returns a cursor over its output.
	Execute(ctx context.Context, query string) (Cursor, error)
}

// QueryRepository defines query execution operations.
type QueryRepository interface {
	// ExecuteQuery runs a final SQL string and fetches the full result.
	ExecuteQuery(ctx context.Context, query string) (*models.RawResult, error)
	// TryQuery reports whether a query executes, discarding any output.
	TryQuery(ctx context.Context, query string) error
}

// QueryStore persists saved queries and their run history.
type QueryStore interface {
	// Save inserts a new saved query or updates an existing one.
	Save(ctx context.Context, q *models.SavedQuery) error
	// Get retrieves a saved query by ID.
	Get(ctx context.Context, id int64) (*models.SavedQuery, error)
	// List returns all saved queries ordered by title.
	List(ctx context.Context) ([]models.SavedQuery, error)
	// Delete removes a saved query.
	Delete(ctx context.Context, id int64) error
	// TouchLastRun stamps the query's most recent execution time.
	TouchLastRun(ctx context.Context, id int64, at time.Time) error
	// LogRun appends a run log entry.
	LogRun(ctx context.Context, entry *models.RunLogEntry) error
	// History returns recent run log entries, newest first. A zero or
	// negative queryID returns history across all queries.
	History(ctx context.Context, queryID int64, limit int) ([]models.RunLogEntry, error)
}
