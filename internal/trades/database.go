package trades

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
)

var ErrTradeNotFound = apperr.NotFound("trade not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ownedBy restricts a trades query to accounts of ownerID.
func ownedBy(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		owned := db.Session(&gorm.Session{NewDB: true}).
			Model(&accounts.Account{}).
			Select("id").
			Where("user_id = ?", ownerID)
		return db.Where("trades.account_id IN (?)", owned)
	}
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("trades.entry_date DESC").Order("trades.created_at DESC")
}

func findOwned(db *gorm.DB, ownerID, tradeID string) (*Trade, error) {
	var trade Trade
	err := db.Scopes(ownedBy(ownerID)).Where("trades.id = ?", tradeID).First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}

// LockOwned loads a trade of ownerID inside tx and holds its row lock until tx ends.
func (d *Database) LockOwned(tx *gorm.DB, ownerID, tradeID string) (*Trade, error) {
	return findOwned(database.ForUpdate(tx, "trades"), ownerID, tradeID)
}

func (d *Database) GetOwned(ctx context.Context, ownerID, tradeID string) (*Trade, error) {
	return findOwned(d.db.WithContext(ctx), ownerID, tradeID)
}

func (d *Database) Create(tx *gorm.DB, trade *Trade) error {
	return tx.Create(trade).Error
}

// Update writes the given columns of one trade.
func (d *Database) Update(tx *gorm.DB, tradeID string, fields map[string]interface{}) error {
	res := tx.Model(&Trade{}).Where("id = ?", tradeID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func (d *Database) Delete(tx *gorm.DB, tradeID string) error {
	res := tx.Where("id = ?", tradeID).Delete(&Trade{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func (d *Database) ListForOwner(ctx context.Context, ownerID string, page database.Page) ([]Trade, error) {
	trades := []Trade{}
	err := d.db.WithContext(ctx).
		Scopes(ownedBy(ownerID), newestFirst, database.Paginate(page)).
		Find(&trades).Error
	return trades, err
}

func (d *Database) ListForAccount(ctx context.Context, accountID string, page database.Page) ([]Trade, error) {
	trades := []Trade{}
	err := d.db.WithContext(ctx).
		Where("trades.account_id = ?", accountID).
		Scopes(newestFirst, database.Paginate(page)).
		Find(&trades).Error
	return trades, err
}

// Find returns every trade of ownerID matching f, newest first.
func (d *Database) Find(ctx context.Context, ownerID string, f Filter) ([]Trade, error) {
	q := d.db.WithContext(ctx).Scopes(ownedBy(ownerID), newestFirst)
	if f.AccountID != "" {
		q = q.Where("trades.account_id = ?", f.AccountID)
	}
	if f.From != nil {
		q = q.Where("trades.entry_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("trades.entry_date < ?", f.To.UTC())
	}

	trades := []Trade{}
	err := q.Find(&trades).Error
	return trades, err
}

func closeFields(t *Trade, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"exit_price":    t.ExitPrice,
		"exit_date":     t.ExitDate,
		"result":        t.Result,
		"status":        t.Status,
		"post_analysis": t.PostAnalysis,
		"updated_at":    now,
	}
}
