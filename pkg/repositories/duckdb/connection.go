// Package duckdb provides DuckDB-specific repository implementations.
package duckdb

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/infrastructure/pool"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
)

// pooledConnection implements repositories.Connection over the pool.
type pooledConnection struct {
	pool   pool.ConnectionPool
	logger zerolog.Logger
}

// NewConnection creates a Connection backed by the pool.
func NewConnection(p pool.ConnectionPool, logger zerolog.Logger) repositories.Connection {
	return &pooledConnection{pool: p, logger: logger}
}

// Execute runs the statement and returns a cursor over its output.
func (c *pooledConnection) Execute(ctx context.Context, query string) (repositories.Cursor, error) {
	db, err := c.pool.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "failed to get connection from pool")
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	descriptors, err := describeColumns(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}

	return &rowsCursor{rows: rows, descriptors: descriptors}, nil
}

func describeColumns(rows *sql.Rows) ([]models.ColumnDescriptor, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	descriptors := make([]models.ColumnDescriptor, len(types))
	for i, ct := range types {
		descriptors[i] = models.ColumnDescriptor{
			Name:     ct.Name(),
			TypeName: ct.DatabaseTypeName(),
		}
	}
	return descriptors, nil
}

// rowsCursor adapts *sql.Rows to the Cursor interface.
type rowsCursor struct {
	rows        *sql.Rows
	descriptors []models.ColumnDescriptor
}

func (c *rowsCursor) Descriptors() []models.ColumnDescriptor {
	return c.descriptors
}

// FetchAll scans every remaining row into memory.
func (c *rowsCursor) FetchAll() ([][]interface{}, error) {
	width := len(c.descriptors)
	out := make([][]interface{}, 0)

	for c.rows.Next() {
		values := make([]interface{}, width)
		scanTargets := make([]interface{}, width)
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := c.rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}

	if err := c.rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}
