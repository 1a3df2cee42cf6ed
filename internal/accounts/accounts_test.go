package accounts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/database/dbtest"
)

// tradeRow stands in for the trades table so account deletion can be checked
// without importing the trades package.
type tradeRow struct {
	ID        string `gorm:"primaryKey"`
	AccountID string
}

func (tradeRow) TableName() string { return "trades" }

func newLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &Account{}, &tradeRow{})
	return NewLedger(db), db
}

func TestCreateStartsAtInitialBalance(t *testing.T) {
	ledger, _ := newLedger(t)

	account, err := ledger.Create(context.Background(), "owner-1", CreateAccountInput{
		AccountName:    "Gold swing",
		BrokerName:     "IC Markets",
		InitialBalance: 10000,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, 10000.0, account.CurrentBalance)
	assert.Equal(t, account.InitialBalance, account.CurrentBalance)
	assert.Equal(t, DefaultAccountType, account.AccountType)

	stored, err := ledger.Get(context.Background(), "owner-1", account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, stored.CurrentBalance)
}

func TestCreateValidates(t *testing.T) {
	ledger, _ := newLedger(t)

	_, err := ledger.Create(context.Background(), "owner-1", CreateAccountInput{BrokerName: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ledger.Create(context.Background(), "owner-1", CreateAccountInput{AccountName: "x", BrokerName: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOwnerScoping(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	mine, err := ledger.Create(ctx, "owner-1", CreateAccountInput{AccountName: "A", BrokerName: "B", InitialBalance: 1})
	require.NoError(t, err)
	_, err = ledger.Create(ctx, "owner-2", CreateAccountInput{AccountName: "C", BrokerName: "D", InitialBalance: 2})
	require.NoError(t, err)

	list, err := ledger.List(ctx, "owner-1", database.NewPage(0, 0))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = ledger.Get(ctx, "owner-2", mine.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = ledger.Delete(ctx, "owner-2", mine.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = ledger.Get(ctx, "owner-1", mine.ID)
	assert.NoError(t, err)
}

func TestDeleteRemovesTrades(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	keep, err := ledger.Create(ctx, "owner-1", CreateAccountInput{AccountName: "keep", BrokerName: "B"})
	require.NoError(t, err)
	drop, err := ledger.Create(ctx, "owner-1", CreateAccountInput{AccountName: "drop", BrokerName: "B"})
	require.NoError(t, err)

	require.NoError(t, db.Create(&tradeRow{ID: "t1", AccountID: drop.ID}).Error)
	require.NoError(t, db.Create(&tradeRow{ID: "t2", AccountID: drop.ID}).Error)
	require.NoError(t, db.Create(&tradeRow{ID: "t3", AccountID: keep.ID}).Error)

	require.NoError(t, ledger.Delete(ctx, "owner-1", drop.ID))

	var remaining []tradeRow
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "t3", remaining[0].ID)

	_, err = ledger.Get(ctx, "owner-1", drop.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustBalance(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	account, err := ledger.Create(ctx, "owner-1", CreateAccountInput{AccountName: "A", BrokerName: "B", InitialBalance: 500})
	require.NoError(t, err)

	err = database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
		return ledger.AdjustBalance(tx, account.ID, 125.5, "close")
	})
	require.NoError(t, err)

	err = database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
		return ledger.AdjustBalance(tx, "missing", 1, "close")
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stored, err := ledger.Get(ctx, "owner-1", account.ID)
	require.NoError(t, err)
	assert.Equal(t, 625.5, stored.CurrentBalance)
	assert.Equal(t, 500.0, stored.InitialBalance)
}

func TestAdjustBalanceConcurrent(t *testing.T) {
	ledger, db := newLedger(t)
	ctx := context.Background()

	account, err := ledger.Create(ctx, "owner-1", CreateAccountInput{AccountName: "A", BrokerName: "B", InitialBalance: 0})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- database.WithTransaction(ctx, db, func(tx *gorm.DB) error {
				return ledger.AdjustBalance(tx, account.ID, 10, "close")
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := ledger.Get(ctx, "owner-1", account.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored.CurrentBalance)
}
