package postgres

import (
	"context"
	"testing"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txColumns() []string {
	return []string{"id", "account", "type", "amount", "listing_id", "created_at"}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	ctx := inTx(t, mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	txn := domain.NewTransaction(testSeller, domain.TransactionTypeSaleProceeds, ether(2), 1, now)

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, testSeller.Hex(), "SALE_PROCEEDS", "2000000000000000000", int64(1), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(ctx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	typ := domain.TransactionTypeDeposit
	params := domain.TransactionListParams{Account: testBuyer, Type: &typ, Page: 1, PageSize: 20}
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE account = \\$1 AND type = \\$2").
		WithArgs(testBuyer.Hex(), "DEPOSIT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE account = \\$1 AND type = \\$2 ORDER BY created_at DESC").
		WithArgs(testBuyer.Hex(), "DEPOSIT", 20, 0).
		WillReturnRows(pgxmock.NewRows(txColumns()).
			AddRow(id, testBuyer.Hex(), "DEPOSIT", "5000000000000000000", int64(0), now))

	txns, total, err := NewTransactionRepo(mock).List(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, id, txns[0].ID)
	assert.Equal(t, domain.TransactionTypeDeposit, txns[0].Type)
	assert.Equal(t, 0, ether(5).Cmp(txns[0].Amount))
	assert.Equal(t, testBuyer, txns[0].Account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_SecondPage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	params := domain.TransactionListParams{Account: testBuyer, Page: 3, PageSize: 5}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE account = \\$1").
		WithArgs(testBuyer.Hex()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE account = \\$1 ORDER BY created_at DESC, id LIMIT \\$2 OFFSET \\$3").
		WithArgs(testBuyer.Hex(), 5, 10).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	txns, total, err := NewTransactionRepo(mock).List(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumByType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	since := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)::text FROM transactions WHERE type = \\$1$").
		WithArgs("PLATFORM_FEE").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow("60000000000000000"))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)::text FROM transactions WHERE type = \\$1 AND created_at >= \\$2").
		WithArgs("SALE_PROCEEDS", since).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow("0"))

	fees, err := repo.SumByType(context.Background(), domain.TransactionTypePlatformFee, nil)
	require.NoError(t, err)
	assert.Equal(t, "60000000000000000", fees.String())

	volume, err := repo.SumByType(context.Background(), domain.TransactionTypeSaleProceeds, &since)
	require.NoError(t, err)
	assert.Equal(t, 0, volume.Sign())
	assert.NoError(t, mock.ExpectationsWereMet())
}
