// Package reconcile checks that every account balance still equals its
// initial balance plus the results of its closed trades.
package reconcile

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/metrics"
	"github.com/ksred/tradejournal-api/internal/types"
)

// tolerance absorbs float rounding accumulated over many increments
const tolerance = 1e-6

// Drift is an account whose stored balance disagrees with its trades.
type Drift struct {
	AccountID      string  `json:"account_id"`
	UserID         string  `json:"user_id"`
	InitialBalance float64 `json:"initial_balance"`
	CurrentBalance float64 `json:"current_balance"`
	ClosedResults  float64 `json:"closed_results"`
}

// Expected is the balance the account should hold.
func (d Drift) Expected() float64 {
	return d.InitialBalance + d.ClosedResults
}

func (d Drift) Difference() float64 {
	return d.CurrentBalance - d.Expected()
}

// Processor runs reconciliation passes on an interval. It only reports drift;
// balances are never rewritten here.
type Processor struct {
	db       *gorm.DB
	interval time.Duration
	logger   zerolog.Logger
}

func NewProcessor(db *gorm.DB, interval time.Duration) *Processor {
	return &Processor{
		db:       db,
		interval: interval,
		logger:   log.With().Str("component", "reconcile_processor").Logger(),
	}
}

// Start runs a pass every interval until ctx is done
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("starting reconcile processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down reconcile processor")
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to reconcile balances")
			}
		}
	}
}

type row struct {
	AccountID      string
	UserID         string
	InitialBalance float64
	CurrentBalance float64
	ClosedResults  float64
}

// Run performs one pass and returns the drifting accounts.
func (p *Processor) Run(ctx context.Context) ([]Drift, error) {
	var rows []row
	err := p.db.WithContext(ctx).
		Table("accounts AS a").
		Select("a.id AS account_id, a.user_id, a.initial_balance, a.current_balance, COALESCE(SUM(t.result), 0) AS closed_results").
		Joins("LEFT JOIN trades t ON t.account_id = a.id AND t.status = ?", types.StatusClosed.String()).
		Group("a.id, a.user_id, a.initial_balance, a.current_balance").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var drift []Drift
	for _, r := range rows {
		d := Drift(r)
		if math.Abs(d.Difference()) > tolerance {
			drift = append(drift, d)
			p.logger.Warn().
				Str("account_id", d.AccountID).
				Str("user_id", d.UserID).
				Float64("current_balance", d.CurrentBalance).
				Float64("expected_balance", d.Expected()).
				Msg("account balance drift detected")
		}
	}

	metrics.ReconcileRuns.Inc()
	metrics.BalanceDrift.Set(float64(len(drift)))
	p.logger.Debug().Int("accounts", len(rows)).Int("drifting", len(drift)).Msg("reconcile pass complete")
	return drift, nil
}
