package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRepo_Next(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSequenceRepo(mock)
	ctx := inTx(t, mock)

	mock.ExpectQuery("INSERT INTO sequences .+ RETURNING value").
		WithArgs("listing").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(4)))

	id, err := repo.Next(ctx, "listing")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepo_Current(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSequenceRepo(mock)

	mock.ExpectQuery("SELECT value FROM sequences").
		WithArgs("listing").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(9)))
	mock.ExpectQuery("SELECT value FROM sequences").
		WithArgs("asset").
		WillReturnError(pgx.ErrNoRows)

	v, err := repo.Current(context.Background(), "listing")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)

	v, err = repo.Current(context.Background(), "asset")
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}
