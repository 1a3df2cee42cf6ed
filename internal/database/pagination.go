package database

import (
	"strconv"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Page is an offset window over an ordered listing.
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// NewPage clamps skip and limit into their allowed range.
func NewPage(skip, limit int) Page {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Skip: skip, Limit: limit}
}

// ParsePage reads skip/limit query values. Empty values take the defaults.
func ParsePage(skip, limit string) (Page, error) {
	s, l := 0, DefaultLimit
	var err error
	if skip != "" {
		if s, err = strconv.Atoi(skip); err != nil || s < 0 {
			return Page{}, apperr.Validationf("invalid skip %q", skip)
		}
	}
	if limit != "" {
		if l, err = strconv.Atoi(limit); err != nil || l <= 0 {
			return Page{}, apperr.Validationf("invalid limit %q", limit)
		}
	}
	return NewPage(s, l), nil
}

// Paginate is a gorm scope applying the page window.
func Paginate(p Page) func(*gorm.DB) *gorm.DB {
	p = NewPage(p.Skip, p.Limit)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Skip).Limit(p.Limit)
	}
}
