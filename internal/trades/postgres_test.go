package trades

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/apperr"
)

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return NewEngine(db, accounts.NewLedger(db), pub), mock
}

func openTradeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_id", "instrument", "entry_price", "position_size",
		"direction", "status", "entry_date", "created_at", "updated_at",
	}).AddRow(
		"trade-1", "account-1", "XAUUSD", 2000.0, 2.0,
		"long", "open", time.Now(), time.Now(), time.Now(),
	)
}

func TestCloseLocksTradeAndRollsBackOnBalanceFailure(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "trades" WHERE .*trades.account_id IN \(SELECT .+ FROM "accounts" WHERE user_id = .+FOR UPDATE OF "trades"`).
		WillReturnRows(openTradeRows())
	mock.ExpectExec(`UPDATE "trades" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "accounts" SET "current_balance"=current_balance \+ \$1`).
		WillReturnError(errors.New("could not serialize access"))
	mock.ExpectRollback()

	_, err := engine.Close(context.Background(), "owner-1", "trade-1", CloseTradeInput{ExitPrice: ptr(2010)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseCommitsTradeAndBalanceTogether(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "trades"`).WillReturnRows(openTradeRows())
	mock.ExpectExec(`UPDATE "trades" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "accounts" SET "current_balance"=current_balance \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	closed, err := engine.Close(context.Background(), "owner-1", "trade-1", CloseTradeInput{ExitPrice: ptr(2010)})
	require.NoError(t, err)
	require.NotNil(t, closed.Result)
	assert.Equal(t, 20.0, *closed.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingTradeRollsBack(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "trades"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := engine.Delete(context.Background(), "owner-1", "trade-404")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
