package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE assets").
		WithArgs(testBuyer.Hex(), testRegistry.Hex(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		return NewAssetRepo(mock).UpdateOwner(ctx, testRegistry, 1, testBuyer)
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnPanic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
			panic("settle exploded")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_NestedCallJoinsOuterTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// A single Begin/Commit pair proves the inner call did not open its own.
	mock.ExpectBegin()
	mock.ExpectCommit()

	tr := NewTransactor(mock)
	innerRan := false
	err = tr.WithinTx(context.Background(), func(ctx context.Context) error {
		return tr.WithinTx(ctx, func(ctx context.Context) error {
			innerRan = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, innerRan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err = NewTransactor(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}
