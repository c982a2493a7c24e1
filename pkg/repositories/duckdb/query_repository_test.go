package duckdb

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
)

type fakeCursor struct {
	descriptors []models.ColumnDescriptor
	rows        [][]interface{}
	fetchErr    error
	closed      bool
}

func (c *fakeCursor) Descriptors() []models.ColumnDescriptor { return c.descriptors }

func (c *fakeCursor) FetchAll() ([][]interface{}, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.rows, nil
}

func (c *fakeCursor) Close() error {
	c.closed = true
	return nil
}

type fakeConnection struct {
	cursor     *fakeCursor
	executeErr error
	lastQuery  string
}

func (f *fakeConnection) Execute(ctx context.Context, query string) (repositories.Cursor, error) {
	f.lastQuery = query
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return f.cursor, nil
}

func TestExecuteQuery_Success(t *testing.T) {
	cursor := &fakeCursor{
		descriptors: []models.ColumnDescriptor{{Name: "id", TypeName: "BIGINT"}},
		rows:        [][]interface{}{{int64(1)}, {int64(2)}},
	}
	conn := &fakeConnection{cursor: cursor}
	repo := NewQueryRepository(conn, zerolog.Nop())

	result, err := repo.ExecuteQuery(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM t", conn.lastQuery)
	assert.Equal(t, cursor.descriptors, result.Descriptors)
	assert.Len(t, result.Rows, 2)
	assert.True(t, cursor.closed, "cursor must be closed after a successful fetch")
}

func TestExecuteQuery_ExecuteError(t *testing.T) {
	cause := errors.New("syntax error near FROM")
	conn := &fakeConnection{executeErr: cause}
	repo := NewQueryRepository(conn, zerolog.Nop())

	result, err := repo.ExecuteQuery(context.Background(), "SELECT FROM")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsQueryFailed(err))
	assert.ErrorIs(t, err, cause, "the backend cause must stay reachable")
}

func TestExecuteQuery_FetchErrorClosesCursor(t *testing.T) {
	cursor := &fakeCursor{
		descriptors: []models.ColumnDescriptor{{Name: "id", TypeName: "BIGINT"}},
		fetchErr:    errors.New("connection reset"),
	}
	conn := &fakeConnection{cursor: cursor}
	repo := NewQueryRepository(conn, zerolog.Nop())

	_, err := repo.ExecuteQuery(context.Background(), "SELECT id FROM t")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsQueryFailed(err))
	assert.True(t, cursor.closed, "cursor must be closed even when the fetch fails")
}

func TestTryQuery(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		cursor := &fakeCursor{}
		conn := &fakeConnection{cursor: cursor}
		repo := NewQueryRepository(conn, zerolog.Nop())

		err := repo.TryQuery(context.Background(), "SELECT 1")
		require.NoError(t, err)
		assert.True(t, cursor.closed, "validity check must release its cursor")
	})

	t.Run("invalid query", func(t *testing.T) {
		conn := &fakeConnection{executeErr: errors.New("bad sql")}
		repo := NewQueryRepository(conn, zerolog.Nop())

		err := repo.TryQuery(context.Background(), "bad sql")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsQueryFailed(err))
	})
}
