package accounts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
)

var ErrAccountNotFound = apperr.NotFound("account not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAccount(ctx context.Context, account *Account) error {
	return d.db.WithContext(ctx).Create(account).Error
}

func (d *Database) ListAccounts(ctx context.Context, ownerID string, page database.Page) ([]Account, error) {
	accounts := []Account{}
	err := d.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Scopes(database.Paginate(page)).
		Find(&accounts).Error
	return accounts, err
}

// getOwned runs on db, which may be a transaction.
func getOwned(db *gorm.DB, ownerID, accountID string) (*Account, error) {
	var account Account
	err := db.Where("id = ? AND user_id = ?", accountID, ownerID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (d *Database) GetAccount(ctx context.Context, ownerID, accountID string) (*Account, error) {
	return getOwned(d.db.WithContext(ctx), ownerID, accountID)
}

// DeleteAccount removes the account's trades and then the account in one transaction.
func (d *Database) DeleteAccount(ctx context.Context, ownerID, accountID string) error {
	return database.WithTransaction(ctx, d.db, func(tx *gorm.DB) error {
		if _, err := getOwned(database.ForUpdate(tx, "accounts"), ownerID, accountID); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM trades WHERE account_id = ?", accountID).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", accountID).Delete(&Account{}).Error
	})
}

// adjustBalance increments the balance in the database so concurrent writers
// on the same row serialize instead of overwriting each other.
func adjustBalance(tx *gorm.DB, accountID string, delta float64) error {
	res := tx.Model(&Account{}).
		Where("id = ?", accountID).
		Update("current_balance", gorm.Expr("current_balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
