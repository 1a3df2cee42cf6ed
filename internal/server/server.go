// Package server assembles the journal services into a gin engine.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/analytics"
	"github.com/ksred/tradejournal-api/internal/auth"
	"github.com/ksred/tradejournal-api/internal/cache"
	"github.com/ksred/tradejournal-api/internal/calculator"
	"github.com/ksred/tradejournal-api/internal/config"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/health"
	"github.com/ksred/tradejournal-api/internal/templates"
	"github.com/ksred/tradejournal-api/internal/trades"
	"github.com/ksred/tradejournal-api/pkg/middleware"
)

// Server holds the router and the pieces callers wire further: the event
// dispatcher for extra subscribers, the health checker for extra dependencies
// and the rate limiter whose cleanup loop they run.
type Server struct {
	Router      *gin.Engine
	Dispatcher  *events.Dispatcher
	Health      *health.Checker
	RateLimiter *middleware.RateLimiter
}

// New builds every service on db. A nil cache disables analytics caching.
func New(cfg *config.Config, db *gorm.DB, c cache.Cache) *Server {
	dispatcher := events.NewDispatcher()

	authService := auth.NewService(db, cfg.JWTSecret, cfg.TokenTTL)
	ledger := accounts.NewLedger(db).WithPublisher(dispatcher)
	engine := trades.NewEngine(db, ledger, dispatcher)
	templateStore := templates.NewStore(db)

	analyticsService := analytics.NewService(engine, c)
	dispatcher.Subscribe("analytics-cache", analyticsService.Invalidate)

	checker := health.NewChecker(db)
	limiter := middleware.NewRateLimiter(
		middleware.RateRule{Prefix: "/api/auth", PerMinute: cfg.RateLimitAuth},
		middleware.RateRule{Prefix: "/api", PerMinute: cfg.RateLimitAPI},
	)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics())

	var authenticate gin.HandlerFunc
	if cfg.DemoMode {
		zlog.Warn().Str("owner_id", cfg.DemoOwnerID).Msg("Demo mode enabled, every request acts as the demo owner")
		authenticate = middleware.DemoOwner(cfg.DemoOwnerID)
	} else {
		authenticate = middleware.JWTAuth(authService.OwnerFromToken)
	}

	setupRoutes(router, authenticate, limiter.Handler(), handlers{
		health:     health.NewGinHandlers(checker),
		auth:       auth.NewGinHandlers(authService),
		accounts:   accounts.NewGinHandlers(ledger),
		trades:     trades.NewGinHandlers(engine),
		templates:  templates.NewGinHandlers(templateStore),
		analytics:  analytics.NewGinHandlers(analyticsService),
		calculator: calculator.NewGinHandlers(),
	})

	return &Server{
		Router:      router,
		Dispatcher:  dispatcher,
		Health:      checker,
		RateLimiter: limiter,
	}
}

type handlers struct {
	health     *health.GinHandlers
	auth       *auth.GinHandlers
	accounts   *accounts.GinHandlers
	trades     *trades.GinHandlers
	templates  *templates.GinHandlers
	analytics  *analytics.GinHandlers
	calculator *calculator.GinHandlers
}

// setupRoutes configures all API endpoints. Rate limiting runs after
// authentication so protected routes are limited per owner rather than per IP.
func setupRoutes(router *gin.Engine, authenticate, rateLimit gin.HandlerFunc, h handlers) {
	router.GET("/", h.health.RootHandler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/health", h.health.HealthHandler())

	// Public auth routes
	public := api.Group("/auth", rateLimit)
	{
		public.POST("/register", h.auth.RegisterHandler())
		public.POST("/login", h.auth.LoginHandler())
	}

	protected := api.Group("", authenticate, rateLimit)
	{
		protected.GET("/auth/me", h.auth.MeHandler())

		accountRoutes := protected.Group("/accounts")
		{
			accountRoutes.POST("", h.accounts.CreateAccountHandler())
			accountRoutes.GET("", h.accounts.ListAccountsHandler())
			accountRoutes.GET("/:id", h.accounts.GetAccountHandler())
			accountRoutes.DELETE("/:id", h.accounts.DeleteAccountHandler())
		}

		tradeRoutes := protected.Group("/trades")
		{
			tradeRoutes.POST("", h.trades.OpenTradeHandler())
			tradeRoutes.GET("", h.trades.ListTradesHandler())
			tradeRoutes.GET("/account/:account_id", h.trades.ListAccountTradesHandler())
			tradeRoutes.GET("/:id", h.trades.GetTradeHandler())
			tradeRoutes.PATCH("/:id/close", h.trades.CloseTradeHandler())
			tradeRoutes.PATCH("/:id/analysis", h.trades.UpdateAnalysisHandler())
			tradeRoutes.DELETE("/:id", h.trades.DeleteTradeHandler())
		}

		templateRoutes := protected.Group("/templates")
		{
			templateRoutes.POST("", h.templates.CreateTemplateHandler())
			templateRoutes.GET("", h.templates.ListTemplatesHandler())
			templateRoutes.GET("/:id", h.templates.GetTemplateHandler())
			templateRoutes.PUT("/:id", h.templates.UpdateTemplateHandler())
			templateRoutes.DELETE("/:id", h.templates.DeleteTemplateHandler())
		}

		protected.GET("/analytics/summary", h.analytics.SummaryHandler())

		calculatorRoutes := protected.Group("/calculator")
		{
			calculatorRoutes.POST("/position-size", h.calculator.PositionSizeHandler())
			calculatorRoutes.POST("/risk-reward", h.calculator.RiskRewardHandler())
			calculatorRoutes.POST("/profit-loss", h.calculator.ProfitLossHandler())
		}
	}
}
