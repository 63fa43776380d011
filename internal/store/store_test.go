package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS donors").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, (&DB{Client: db}).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateWrapsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err = (&DB{Client: db}).Migrate(context.Background())
	assert.EqualError(t, err, "apply schema: permission denied")
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var d *DB
	var r *Redis
	assert.False(t, d.Healthy(context.Background()))
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, d.Close())
	assert.NoError(t, r.Close())
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(mr.Addr())
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Healthy(context.Background()))

	byURL, err := NewRedis("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer byURL.Close()
	assert.True(t, byURL.Healthy(context.Background()))

	_, err = NewRedis("redis://" + mr.Addr() + "/notadb")
	assert.Error(t, err)
}
