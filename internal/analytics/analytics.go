package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/cache"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/metrics"
	"github.com/ksred/tradejournal-api/internal/trades"
	"github.com/ksred/tradejournal-api/pkg/middleware"
	"github.com/ksred/tradejournal-api/pkg/response"
)

// TradeSource returns an owner's trades for reporting.
type TradeSource interface {
	Find(ctx context.Context, ownerID string, f trades.Filter) ([]trades.Trade, error)
}

// Service builds performance summaries. Unfiltered summaries are cached per
// owner and account until a trade event for that owner invalidates them.
//
// generations counts invalidations per owner. A summary computed while an
// invalidation ran is returned but never left in the cache.
type Service struct {
	source TradeSource
	cache  cache.Cache
	now    func() time.Time
	logger zerolog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

func NewService(source TradeSource, c cache.Cache) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		source: source,
		cache:  c,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zlog.With().Str("service", "analytics").Logger(),

		generations: make(map[string]uint64),
	}
}

func (s *Service) generation(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[ownerID]
}

func (s *Service) bump(ownerID string) {
	s.mu.Lock()
	s.generations[ownerID]++
	s.mu.Unlock()
}

func summaryKey(ownerID, accountID string) string {
	if accountID == "" {
		accountID = "all"
	}
	return fmt.Sprintf("analytics:summary:%s:%s", ownerID, accountID)
}

func (s *Service) Summary(ctx context.Context, ownerID string, f trades.Filter) (*Summary, error) {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperr.Validation("start_date must be before end_date")
	}

	cacheable := f.From == nil && f.To == nil
	key := summaryKey(ownerID, f.AccountID)
	gen := s.generation(ownerID)
	if cacheable {
		var cached Summary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Analytics cache read failed")
		}
		if hit {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	list, err := s.source.Find(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	summary := Summarize(list, s.now())

	if cacheable {
		s.store(ctx, ownerID, key, gen, summary)
	}
	return summary, nil
}

// store caches summary unless an invalidation for the owner ran after gen was
// read. Invalidate bumps before deleting, so a write that raced past the
// delete sees the new generation here and removes itself.
func (s *Service) store(ctx context.Context, ownerID, key string, gen uint64, summary *Summary) {
	if s.generation(ownerID) != gen {
		return
	}
	if err := s.cache.Set(ctx, key, summary); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Analytics cache write failed")
		return
	}
	if s.generation(ownerID) != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Analytics cache delete failed")
		}
	}
}

// Invalidate drops the cached summaries an event makes stale.
func (s *Service) Invalidate(ctx context.Context, evt events.Event) error {
	s.bump(evt.OwnerID)
	keys := []string{summaryKey(evt.OwnerID, "")}
	if evt.AccountID != "" {
		keys = append(keys, summaryKey(evt.OwnerID, evt.AccountID))
	}
	return s.cache.Delete(ctx, keys...)
}

// GinHandlers contains HTTP handlers for analytics endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SummaryHandler handles GET /analytics/summary?account_id=&start_date=&end_date=
func (h *GinHandlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := parseDate(c.Query("start_date"), false)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		to, err := parseDate(c.Query("end_date"), true)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		summary, err := h.service.Summary(c.Request.Context(), middleware.OwnerID(c), trades.Filter{
			AccountID: c.Query("account_id"),
			From:      from,
			To:        to,
		})
		response.Handle(c, summary, err)
	}
}

// parseDate accepts RFC3339 or YYYY-MM-DD. A bare end date covers that whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, apperr.Validationf("invalid date %q: use YYYY-MM-DD or RFC3339", value)
	}
	if endOfDay {
		t = t.Add(24 * time.Hour)
	}
	return &t, nil
}
