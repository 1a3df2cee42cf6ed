package trades

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/metrics"
	"github.com/ksred/tradejournal-api/internal/types"
)

var ErrAlreadyClosed = apperr.Forbidden("trade already closed")

// ComputeResult returns the signed profit or loss of a position.
// LONG earns (exit-entry)*size, SHORT earns (entry-exit)*size.
func ComputeResult(direction types.Direction, entry, exit, size float64) float64 {
	if direction == types.DirectionShort {
		return (entry - exit) * size
	}
	return (exit - entry) * size
}

// Engine runs the trade lifecycle: open, close, analysis updates and deletion,
// keeping each account's balance equal to its initial balance plus the results
// of its closed trades.
type Engine struct {
	gormDB    *gorm.DB
	db        *Database
	ledger    *accounts.Ledger
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

func NewEngine(gormDB *gorm.DB, ledger *accounts.Ledger, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Engine{
		gormDB:    gormDB,
		db:        NewDatabase(gormDB),
		ledger:    ledger,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zlog.With().Str("service", "trades").Logger(),
	}
}

// Open creates an OPEN trade on an account the owner holds. The balance is untouched.
func (e *Engine) Open(ctx context.Context, ownerID, accountID string, input OpenTradeInput) (*Trade, error) {
	if err := validateOpen(input); err != nil {
		return nil, err
	}

	var pre *string
	if input.PreAnalysis != nil {
		encoded, err := encodePayload(input.PreAnalysis)
		if err != nil {
			return nil, err
		}
		pre = encoded
	}

	instrument := strings.TrimSpace(input.Instrument)
	if instrument == "" {
		instrument = DefaultInstrument
	}

	now := e.now()
	trade := &Trade{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Instrument:   instrument,
		EntryPrice:   *input.EntryPrice,
		PositionSize: input.PositionSize,
		Direction:    input.Direction,
		StopLoss:     input.StopLoss,
		TakeProfit:   input.TakeProfit,
		EntryDate:    now,
		PreAnalysis:  pre,
		Status:       types.StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := database.WithTransaction(ctx, e.gormDB, func(tx *gorm.DB) error {
		if _, err := e.ledger.GetOwned(tx, ownerID, accountID); err != nil {
			return err
		}
		return e.db.Create(tx, trade)
	})
	if err != nil {
		return nil, err
	}

	metrics.TradesOpened.Inc()
	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("account_id", accountID).
		Str("direction", trade.Direction.String()).
		Float64("entry_price", trade.EntryPrice).
		Float64("position_size", trade.PositionSize).
		Msg("Trade opened")
	e.publish(ctx, events.TradeOpened, ownerID, trade, 0, trade.UpdatedAt)
	return trade, nil
}

func validateOpen(input OpenTradeInput) error {
	if input.EntryPrice == nil {
		return apperr.Validation("entry_price is required")
	}
	if !(input.PositionSize > 0) {
		return apperr.Validation("position_size must be greater than zero")
	}
	if !input.Direction.Valid() {
		return apperr.Validation("direction must be long or short")
	}
	return nil
}

// Close moves an OPEN trade to CLOSED and applies its result to the account
// balance in the same transaction. A trade that is already CLOSED is rejected.
func (e *Engine) Close(ctx context.Context, ownerID, tradeID string, input CloseTradeInput) (*Trade, error) {
	post, err := encodePostAnalysis(input.PostAnalysis)
	if err != nil {
		return nil, err
	}

	var (
		trade *Trade
		delta float64
	)
	err = database.WithTransaction(ctx, e.gormDB, func(tx *gorm.DB) error {
		t, err := e.db.LockOwned(tx, ownerID, tradeID)
		if err != nil {
			return err
		}
		if t.Status == types.StatusClosed {
			return ErrAlreadyClosed
		}

		now := e.now()
		applyClose(t, input, now)
		if post != nil {
			t.PostAnalysis = post
		}
		t.UpdatedAt = now

		if err := e.db.Update(tx, t.ID, closeFields(t, now)); err != nil {
			return err
		}
		if t.Result != nil && *t.Result != 0 {
			if err := e.ledger.AdjustBalance(tx, t.AccountID, *t.Result, "close"); err != nil {
				return err
			}
			delta = *t.Result
		}

		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TradesClosed.WithLabelValues(metrics.Outcome(trade.Result)).Inc()
	logEvt := e.logger.Info().
		Str("trade_id", trade.ID).
		Str("account_id", trade.AccountID).
		Float64("balance_delta", delta)
	if trade.Result != nil {
		logEvt = logEvt.Float64("result", *trade.Result)
	}
	logEvt.Msg("Trade closed")

	e.publish(ctx, events.TradeClosed, ownerID, trade, delta, trade.UpdatedAt)
	return trade, nil
}

// applyClose sets the exit fields, result and status on t. An explicit result
// wins; otherwise it is computed when an exit price is known and stays nil when not.
func applyClose(t *Trade, input CloseTradeInput, now time.Time) {
	if input.ExitPrice != nil {
		exit := *input.ExitPrice
		t.ExitPrice = &exit
	}

	exitDate := now
	if input.ExitDate != nil {
		exitDate = input.ExitDate.UTC()
	}
	t.ExitDate = &exitDate

	switch {
	case input.Result != nil:
		r := *input.Result
		t.Result = &r
	case t.ExitPrice != nil:
		r := ComputeResult(t.Direction, t.EntryPrice, *t.ExitPrice, t.PositionSize)
		t.Result = &r
	}

	t.Status = types.StatusClosed
}

// UpdateAnalysis overwrites the supplied analysis payloads on a trade in any
// status. The balance is untouched.
func (e *Engine) UpdateAnalysis(ctx context.Context, ownerID, tradeID string, patch AnalysisPatch) (*Trade, error) {
	pre, err := normalizeObject("pre_analysis", patch.PreAnalysis)
	if err != nil {
		return nil, err
	}
	post, err := normalizeObject("post_analysis", patch.PostAnalysis)
	if err != nil {
		return nil, err
	}

	var trade *Trade
	err = database.WithTransaction(ctx, e.gormDB, func(tx *gorm.DB) error {
		t, err := e.db.LockOwned(tx, ownerID, tradeID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if pre != nil {
			t.PreAnalysis = pre
			fields["pre_analysis"] = pre
		}
		if post != nil {
			t.PostAnalysis = post
			fields["post_analysis"] = post
		}
		if len(fields) > 0 {
			t.UpdatedAt = e.now()
			fields["updated_at"] = t.UpdatedAt
			if err := e.db.Update(tx, t.ID, fields); err != nil {
				return err
			}
		}

		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TradeAnalysisUpdated, ownerID, trade, 0, e.now())
	return trade, nil
}

// Delete removes a trade. A closed trade's result is first taken back out of
// the account balance, in the same transaction as the delete.
func (e *Engine) Delete(ctx context.Context, ownerID, tradeID string) error {
	var (
		trade *Trade
		delta float64
	)
	err := database.WithTransaction(ctx, e.gormDB, func(tx *gorm.DB) error {
		t, err := e.db.LockOwned(tx, ownerID, tradeID)
		if err != nil {
			return err
		}

		if t.Status == types.StatusClosed && t.Result != nil && *t.Result != 0 {
			delta = -*t.Result
			if err := e.ledger.AdjustBalance(tx, t.AccountID, delta, "delete"); err != nil {
				return err
			}
		}
		if err := e.db.Delete(tx, t.ID); err != nil {
			return err
		}

		trade = t
		return nil
	})
	if err != nil {
		return err
	}

	metrics.TradesDeleted.Inc()
	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("account_id", trade.AccountID).
		Float64("balance_delta", delta).
		Msg("Trade deleted")
	e.publish(ctx, events.TradeDeleted, ownerID, trade, delta, e.now())
	return nil
}

func (e *Engine) Get(ctx context.Context, ownerID, tradeID string) (*Trade, error) {
	return e.db.GetOwned(ctx, ownerID, tradeID)
}

// ListForOwner returns the owner's trades across all accounts, newest entry first.
func (e *Engine) ListForOwner(ctx context.Context, ownerID string, page database.Page) ([]Trade, error) {
	return e.db.ListForOwner(ctx, ownerID, page)
}

// ListForAccount returns one account's trades, newest entry first.
func (e *Engine) ListForAccount(ctx context.Context, ownerID, accountID string, page database.Page) ([]Trade, error) {
	if _, err := e.ledger.Get(ctx, ownerID, accountID); err != nil {
		return nil, err
	}
	return e.db.ListForAccount(ctx, accountID, page)
}

// Find returns all of the owner's trades matching f. Used by analytics.
func (e *Engine) Find(ctx context.Context, ownerID string, f Filter) ([]Trade, error) {
	if f.AccountID != "" {
		if _, err := e.ledger.Get(ctx, ownerID, f.AccountID); err != nil {
			return nil, err
		}
	}
	return e.db.Find(ctx, ownerID, f)
}

// publish emits typ for t stamped with at, the time the change was made.
func (e *Engine) publish(ctx context.Context, typ events.Type, ownerID string, t *Trade, delta float64, at time.Time) {
	e.publisher.Publish(ctx, events.Event{
		Type:         typ,
		OwnerID:      ownerID,
		AccountID:    t.AccountID,
		TradeID:      t.ID,
		Instrument:   t.Instrument,
		Result:       t.Result,
		BalanceDelta: delta,
		OccurredAt:   at,
	})
}

func encodePayload(v interface{}) (*string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid analysis payload", err)
	}
	s := string(data)
	return &s, nil
}

func encodePostAnalysis(p *PostAnalysis) (*string, error) {
	if p == nil {
		return nil, nil
	}
	out := *p
	if out.Rating == nil {
		rating := DefaultRating
		out.Rating = &rating
	}
	if *out.Rating < 1 || *out.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	return encodePayload(&out)
}

// normalizeObject accepts an absent or null payload (nil result) or a JSON
// object, returned compacted.
func normalizeObject(field string, raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, apperr.Validationf("%s must be a JSON object", field)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, apperr.Validationf("%s must be a JSON object", field)
	}
	s := buf.String()
	return &s, nil
}
