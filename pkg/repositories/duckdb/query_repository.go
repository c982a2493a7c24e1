package duckdb

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
)

// queryRepository implements repositories.QueryRepository for DuckDB.
type queryRepository struct {
	conn   repositories.Connection
	logger zerolog.Logger
}

// NewQueryRepository creates a new DuckDB query repository.
func NewQueryRepository(conn repositories.Connection, logger zerolog.Logger) repositories.QueryRepository {
	return &queryRepository{
		conn:   conn,
		logger: logger,
	}
}

// ExecuteQuery runs the final SQL string and fetches the full result.
// The cursor is closed on every path, including fetch failures.
func (r *queryRepository) ExecuteQuery(ctx context.Context, query string) (*models.RawResult, error) {
	r.logger.Debug().
		Str("query", truncateQuery(query)).
		Msg("Executing query")

	start := time.Now()

	cursor, err := r.conn.Execute(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeQueryFailed, "failed to execute query")
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil {
			r.logger.Warn().Err(cerr).Msg("Failed to close cursor")
		}
	}()

	rows, err := cursor.FetchAll()
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeQueryFailed, "failed to fetch query results")
	}

	duration := time.Since(start)

	r.logger.Debug().
		Int("rows", len(rows)).
		Dur("duration", duration).
		Msg("Query executed")

	return &models.RawResult{
		Descriptors: cursor.Descriptors(),
		Rows:        rows,
		Duration:    duration,
	}, nil
}

// TryQuery reports whether a query executes, discarding any output.
func (r *queryRepository) TryQuery(ctx context.Context, query string) error {
	cursor, err := r.conn.Execute(ctx, query)
	if err != nil {
		return errors.Wrapf(err, errors.CodeQueryFailed, "query is not valid")
	}
	if cerr := cursor.Close(); cerr != nil {
		r.logger.Warn().Err(cerr).Msg("Failed to close cursor")
	}
	return nil
}

// truncateQuery truncates long queries for logging.
func truncateQuery(query string) string {
	const maxLen = 100
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
