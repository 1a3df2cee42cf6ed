// Package migrations brings a journal database schema up to date.
package migrations

import (
	"fmt"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type step struct {
	name string
	run  func(*gorm.DB) error
}

var steps = []step{
	{"001_create_journal_tables", CreateJournalTables},
	{"002_add_journal_indexes", AddJournalIndexes},
}

// Run applies every step in order. Steps are idempotent, so Run is safe on
// every start.
func Run(db *gorm.DB) error {
	logger := zlog.With().Str("service", "migrations").Logger()
	for _, s := range steps {
		if err := s.run(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", s.name, err)
		}
		logger.Debug().Str("migration", s.name).Msg("Migration applied")
	}
	logger.Info().Int("steps", len(steps)).Msg("Database schema up to date")
	return nil
}
