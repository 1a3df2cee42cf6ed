package events

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/tradejournal-api/internal/metrics"
)

type Type string

const (
	TradeOpened          Type = "trade.opened"
	TradeClosed          Type = "trade.closed"
	TradeAnalysisUpdated Type = "trade.analysis_updated"
	TradeDeleted         Type = "trade.deleted"
	AccountDeleted       Type = "account.deleted"
)

// Event describes a committed change to a trade or account.
type Event struct {
	Type         Type      `json:"type"`
	OwnerID      string    `json:"owner_id"`
	AccountID    string    `json:"account_id"`
	TradeID      string    `json:"trade_id"`
	Instrument   string    `json:"instrument,omitempty"`
	Result       *float64  `json:"result,omitempty"`
	BalanceDelta float64   `json:"balance_delta"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher is implemented by anything that accepts trade events.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Handler consumes a published event. Errors are logged and never reach the publisher.
type Handler func(ctx context.Context, evt Event) error

// Dispatcher fans events out to subscribed handlers in subscription order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(name string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, namedHandler{name: name, fn: fn})
}

func (d *Dispatcher) Publish(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	d.mu.RLock()
	handlers := make([]namedHandler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h.fn(ctx, evt); err != nil {
			zlog.Warn().
				Err(err).
				Str("handler", h.name).
				Str("event", string(evt.Type)).
				Str("trade_id", evt.TradeID).
				Msg("Event handler failed")
		}
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
