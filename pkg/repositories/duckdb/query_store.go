package duckdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/infrastructure/pool"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
)

// schemaStatements bootstrap the saved query catalog. Idempotent, so
// the store can run against a fresh or existing database file.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS saved_queries_id_seq`,
	`CREATE TABLE IF NOT EXISTS saved_queries (
		id          BIGINT PRIMARY KEY DEFAULT nextval('saved_queries_id_seq'),
		title       VARCHAR NOT NULL,
		sql_text    VARCHAR NOT NULL,
		description VARCHAR,
		created_at  TIMESTAMP NOT NULL,
		last_run_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS run_log (
		id          VARCHAR PRIMARY KEY,
		query_id    BIGINT,
		final_sql   VARCHAR NOT NULL,
		playground  BOOLEAN NOT NULL,
		run_at      TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL
	)`,
}

// queryStore implements repositories.QueryStore on DuckDB.
type queryStore struct {
	pool   pool.ConnectionPool
	logger zerolog.Logger
}

// NewQueryStore creates the store and bootstraps its schema.
func NewQueryStore(ctx context.Context, p pool.ConnectionPool, logger zerolog.Logger) (repositories.QueryStore, error) {
	db, err := p.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to bootstrap query store schema")
		}
	}
	return &queryStore{pool: p, logger: logger}, nil
}

// Save inserts a new saved query or updates an existing one. New
// queries get their ID and CreatedAt filled in.
func (s *queryStore) Save(ctx context.Context, q *models.SavedQuery) error {
	if q.Title == "" {
		return errors.New(errors.CodeInvalidRequest, "saved query title is required")
	}
	if q.SQL == "" {
		return errors.New(errors.CodeInvalidRequest, "saved query sql is required")
	}

	db, err := s.pool.Get(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	if q.ID == 0 {
		if q.CreatedAt.IsZero() {
			q.CreatedAt = time.Now().UTC()
		}
		err = db.QueryRowContext(ctx,
			`INSERT INTO saved_queries (title, sql_text, description, created_at)
			 VALUES (?, ?, ?, ?) RETURNING id`,
			q.Title, q.SQL, q.Description, q.CreatedAt,
		).Scan(&q.ID)
		if err != nil {
			return errors.Wrap(err, errors.CodeStoreFailed, "failed to insert saved query")
		}
		s.logger.Debug().Int64("id", q.ID).Str("title", q.Title).Msg("Saved query created")
		return nil
	}

	result, err := db.ExecContext(ctx,
		`UPDATE saved_queries SET title = ?, sql_text = ?, description = ? WHERE id = ?`,
		q.Title, q.SQL, q.Description, q.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to update saved query")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to check update result")
	}
	if affected == 0 {
		return errors.New(errors.CodeNotFound, "saved query not found").WithDetail("id", q.ID)
	}
	return nil
}

// Get retrieves a saved query by ID.
func (s *queryStore) Get(ctx context.Context, id int64) (*models.SavedQuery, error) {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	var q models.SavedQuery
	var description sql.NullString
	var lastRunAt sql.NullTime

	err = db.QueryRowContext(ctx,
		`SELECT id, title, sql_text, description, created_at, last_run_at
		 FROM saved_queries WHERE id = ?`, id,
	).Scan(&q.ID, &q.Title, &q.SQL, &description, &q.CreatedAt, &lastRunAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, "saved query not found").WithDetail("id", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to load saved query")
	}

	q.Description = description.String
	if lastRunAt.Valid {
		q.LastRunAt = lastRunAt.Time
	}
	return &q, nil
}

// List returns all saved queries ordered by title.
func (s *queryStore) List(ctx context.Context) ([]models.SavedQuery, error) {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, title, sql_text, description, created_at, last_run_at
		 FROM saved_queries ORDER BY title`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to list saved queries")
	}
	defer rows.Close()

	queries := make([]models.SavedQuery, 0)
	for rows.Next() {
		var q models.SavedQuery
		var description sql.NullString
		var lastRunAt sql.NullTime
		if err := rows.Scan(&q.ID, &q.Title, &q.SQL, &description, &q.CreatedAt, &lastRunAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to scan saved query")
		}
		q.Description = description.String
		if lastRunAt.Valid {
			q.LastRunAt = lastRunAt.Time
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to read saved queries")
	}
	return queries, nil
}

// Delete removes a saved query.
func (s *queryStore) Delete(ctx context.Context, id int64) error {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	result, err := db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to delete saved query")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to check delete result")
	}
	if affected == 0 {
		return errors.New(errors.CodeNotFound, "saved query not found").WithDetail("id", id)
	}
	return nil
}

// TouchLastRun stamps the query's most recent execution time.
func (s *queryStore) TouchLastRun(ctx context.Context, id int64, at time.Time) error {
	db, err := s.pool.Get(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE saved_queries SET last_run_at = ? WHERE id = ?`, at, id); err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to stamp last run")
	}
	return nil
}

// LogRun appends a run log entry. Entries without an ID get a fresh
// UUID.
func (s *queryStore) LogRun(ctx context.Context, entry *models.RunLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RunAt.IsZero() {
		entry.RunAt = time.Now().UTC()
	}

	db, err := s.pool.Get(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO run_log (id, query_id, final_sql, playground, run_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.QueryID, entry.FinalSQL, entry.Playground, entry.RunAt,
		entry.Duration.Milliseconds(),
	); err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "failed to append run log entry")
	}
	return nil
}

// History returns recent run log entries, newest first.
func (s *queryStore) History(ctx context.Context, queryID int64, limit int) ([]models.RunLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	db, err := s.pool.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	query := `SELECT id, query_id, final_sql, playground, run_at, duration_ms
		 FROM run_log ORDER BY run_at DESC LIMIT ?`
	args := []interface{}{limit}
	if queryID > 0 {
		query = `SELECT id, query_id, final_sql, playground, run_at, duration_ms
			 FROM run_log WHERE query_id = ? ORDER BY run_at DESC LIMIT ?`
		args = []interface{}{queryID, limit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to read run log")
	}
	defer rows.Close()

	entries := make([]models.RunLogEntry, 0)
	for rows.Next() {
		var e models.RunLogEntry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.QueryID, &e.FinalSQL, &e.Playground, &e.RunAt, &durationMS); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to scan run log entry")
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "failed to read run log")
	}
	return entries, nil
}
