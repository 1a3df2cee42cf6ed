package analytics

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/trades"
	"github.com/ksred/tradejournal-api/internal/types"
	"github.com/ksred/tradejournal-api/pkg/middleware"
)

func result(v float64) *float64 { return &v }

func closed(instrument string, dir types.Direction, r *float64) trades.Trade {
	return trades.Trade{Instrument: instrument, Direction: dir, Status: types.StatusClosed, Result: r}
}

type fakeSource struct {
	calls  int
	filter trades.Filter
	trades []trades.Trade
	during func()
}

func (f *fakeSource) Find(_ context.Context, _ string, filter trades.Filter) ([]trades.Trade, error) {
	f.calls++
	f.filter = filter
	list := f.trades
	if f.during != nil {
		f.during()
		f.during = nil
	}
	return list, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestSummarize(t *testing.T) {
	list := []trades.Trade{
		closed("XAUUSD", types.DirectionLong, result(100)),
		closed("XAUUSD", types.DirectionShort, result(-50)),
		closed("XAGUSD", types.DirectionLong, result(200)),
		closed("XAUUSD", types.DirectionLong, result(0)),
		closed("XAUUSD", types.DirectionLong, nil),
		{Instrument: "XAUUSD", Direction: types.DirectionLong, Status: types.StatusOpen},
	}

	s := Summarize(list, time.Now())

	assert.Equal(t, 6, s.TotalTrades)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 5, s.ClosedTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Breakeven)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 300.0, s.TotalProfit, 1e-9)
	assert.InDelta(t, 50.0, s.TotalLoss, 1e-9)
	assert.InDelta(t, 250.0, s.NetProfitLoss, 1e-9)
	assert.InDelta(t, 150.0, s.AverageWin, 1e-9)
	assert.InDelta(t, -50.0, s.AverageLoss, 1e-9)
	assert.InDelta(t, 62.5, s.AverageResult, 1e-9)
	assert.InDelta(t, 6.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 200.0, s.LargestWin, 1e-9)
	assert.InDelta(t, -50.0, s.LargestLoss, 1e-9)
	// sample standard deviation of 100, -50, 200, 0
	assert.InDelta(t, math.Sqrt(36875.0/3), s.ResultStdDev, 1e-9)

	require.Len(t, s.ByInstrument, 2)
	assert.Equal(t, "XAUUSD", s.ByInstrument[0].Key)
	assert.Equal(t, 3, s.ByInstrument[0].Trades)
	assert.InDelta(t, 50.0, s.ByInstrument[0].NetProfitLoss, 1e-9)
	assert.Equal(t, "XAGUSD", s.ByInstrument[1].Key)
	assert.InDelta(t, 100.0, s.ByInstrument[1].WinRate, 1e-9)

	require.Len(t, s.ByDirection, 2)
	assert.Equal(t, "long", s.ByDirection[0].Key)
	assert.Equal(t, "short", s.ByDirection[1].Key)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())

	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
	assert.Zero(t, s.ResultStdDev)
	assert.NotNil(t, s.ByInstrument)

	single := Summarize([]trades.Trade{closed("XAUUSD", types.DirectionLong, result(10))}, time.Now())
	assert.Zero(t, single.ResultStdDev)
	assert.Zero(t, single.ProfitFactor)
	assert.False(t, math.IsNaN(single.AverageResult))
}

func TestSummaryCachesAndInvalidates(t *testing.T) {
	source := &fakeSource{trades: []trades.Trade{closed("XAUUSD", types.DirectionLong, result(10))}}
	svc := NewService(source, newMemCache())
	ctx := context.Background()

	first, err := svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)
	second, err := svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first.NetProfitLoss, second.NetProfitLoss)

	_, err = svc.Summary(ctx, "owner-1", trades.Filter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	require.NoError(t, svc.Invalidate(ctx, events.Event{Type: events.TradeClosed, OwnerID: "owner-1", AccountID: "acc-1"}))

	_, err = svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)
	_, err = svc.Summary(ctx, "owner-1", trades.Filter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, 4, source.calls)
}

func TestSummaryReadDuringInvalidationIsNotCached(t *testing.T) {
	source := &fakeSource{trades: []trades.Trade{closed("XAUUSD", types.DirectionLong, result(10))}}
	cache := newMemCache()
	svc := NewService(source, cache)
	ctx := context.Background()

	source.during = func() {
		source.trades = append(source.trades, closed("XAUUSD", types.DirectionShort, result(-4)))
		require.NoError(t, svc.Invalidate(ctx, events.Event{Type: events.TradeClosed, OwnerID: "owner-1", AccountID: "acc-1"}))
	}

	stale, err := svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, stale.NetProfitLoss)
	assert.Empty(t, cache.data)

	fresh, err := svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6.0, fresh.NetProfitLoss)
	assert.Equal(t, 2, source.calls)
	assert.Len(t, cache.data, 1)

	_, err = svc.Summary(ctx, "owner-1", trades.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestSummaryDateRangeBypassesCache(t *testing.T) {
	source := &fakeSource{}
	svc := NewService(source, newMemCache())
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	for i := 0; i < 2; i++ {
		_, err := svc.Summary(ctx, "owner-1", trades.Filter{From: &from, To: &to})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, source.calls)

	_, err := svc.Summary(ctx, "owner-1", trades.Filter{From: &to, To: &from})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSummaryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	source := &fakeSource{trades: []trades.Trade{closed("XAUUSD", types.DirectionLong, result(10))}}
	h := NewGinHandlers(NewService(source, nil))

	router := gin.New()
	router.Use(middleware.DemoOwner("owner-1"))
	router.GET("/api/analytics/summary", h.SummaryHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary?account_id=acc-1&start_date=2024-01-01&end_date=2024-01-31", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-1", source.filter.AccountID)
	require.NotNil(t, source.filter.To)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *source.filter.To)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/analytics/summary?start_date=yesterday", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
