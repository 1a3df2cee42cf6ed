package migrations

import (
	"gorm.io/gorm"
)

// AddJournalIndexes adds the indexes behind the owner-scoped list queries
func AddJournalIndexes(db *gorm.DB) error {
	indexes := []string{
		// Accounts are listed per owner, oldest first
		`CREATE INDEX IF NOT EXISTS idx_accounts_user_created
		 ON accounts(user_id, created_at)`,

		// Open/closed counts per account
		`CREATE INDEX IF NOT EXISTS idx_trades_account_status
		 ON trades(account_id, status)`,

		`CREATE INDEX IF NOT EXISTS idx_templates_user_created
		 ON templates(user_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
