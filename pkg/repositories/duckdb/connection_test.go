package duckdb

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_Execute(t *testing.T) {
	conn := NewConnection(newTestPool(t), zerolog.Nop())

	cursor, err := conn.Execute(context.Background(), "SELECT 1 AS id, 'alice' AS name")
	require.NoError(t, err)
	defer cursor.Close()

	descriptors := cursor.Descriptors()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "id", descriptors[0].Name)
	assert.Equal(t, "name", descriptors[1].Name)
	assert.NotEmpty(t, descriptors[0].TypeName)

	rows, err := cursor.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 2)
}

func TestConnection_ExecuteInvalidSQL(t *testing.T) {
	conn := NewConnection(newTestPool(t), zerolog.Nop())

	_, err := conn.Execute(context.Background(), "SELECT FROM WHERE")
	assert.Error(t, err)
}

func TestConnection_NullValues(t *testing.T) {
	conn := NewConnection(newTestPool(t), zerolog.Nop())

	cursor, err := conn.Execute(context.Background(), "SELECT NULL AS empty, 2 AS there")
	require.NoError(t, err)
	defer cursor.Close()

	rows, err := cursor.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0][0])
	assert.NotNil(t, rows[0][1])
}
