package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/auth"
	"github.com/ksred/tradejournal-api/internal/templates"
	"github.com/ksred/tradejournal-api/internal/trades"
)

// CreateJournalTables creates users, accounts, trades and templates. Accounts
// must exist before trades so the cascading foreign key can be created.
func CreateJournalTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&auth.User{},
		&accounts.Account{},
		&trades.Trade{},
		&templates.Template{},
	)
}
