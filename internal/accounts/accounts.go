package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/metrics"
	"github.com/ksred/tradejournal-api/pkg/middleware"
	"github.com/ksred/tradejournal-api/pkg/response"
)

// Ledger owns accounts and their running balances. Every read and write is
// scoped to the owning user; foreign accounts look absent.
type Ledger struct {
	db        *Database
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewLedger(gormDB *gorm.DB) *Ledger {
	return &Ledger{
		db:        NewDatabase(gormDB),
		publisher: events.Noop{},
		logger:    zlog.With().Str("service", "accounts").Logger(),
	}
}

// WithPublisher makes the ledger announce account deletions.
func (l *Ledger) WithPublisher(p events.Publisher) *Ledger {
	if p != nil {
		l.publisher = p
	}
	return l
}

// Create opens an account whose current balance equals its initial balance
func (l *Ledger) Create(ctx context.Context, ownerID string, input CreateAccountInput) (*Account, error) {
	name := strings.TrimSpace(input.AccountName)
	broker := strings.TrimSpace(input.BrokerName)
	if name == "" {
		return nil, apperr.Validation("account_name is required")
	}
	if broker == "" {
		return nil, apperr.Validation("broker_name is required")
	}
	accountType := strings.TrimSpace(input.AccountType)
	if accountType == "" {
		accountType = DefaultAccountType
	}

	now := time.Now().UTC()
	account := &Account{
		ID:             uuid.New().String(),
		UserID:         ownerID,
		AccountName:    name,
		BrokerName:     broker,
		InitialBalance: input.InitialBalance,
		CurrentBalance: input.InitialBalance,
		AccountType:    accountType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.db.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("account_id", account.ID).
		Str("owner_id", ownerID).
		Float64("initial_balance", account.InitialBalance).
		Msg("Account created")
	return account, nil
}

func (l *Ledger) List(ctx context.Context, ownerID string, page database.Page) ([]Account, error) {
	return l.db.ListAccounts(ctx, ownerID, page)
}

func (l *Ledger) Get(ctx context.Context, ownerID, accountID string) (*Account, error) {
	return l.db.GetAccount(ctx, ownerID, accountID)
}

// Delete removes the account together with all of its trades
func (l *Ledger) Delete(ctx context.Context, ownerID, accountID string) error {
	if err := l.db.DeleteAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	l.logger.Info().Str("account_id", accountID).Str("owner_id", ownerID).Msg("Account deleted")
	l.publisher.Publish(ctx, events.Event{
		Type:       events.AccountDeleted,
		OwnerID:    ownerID,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// GetOwned is the ownership guard for callers already inside a transaction.
func (l *Ledger) GetOwned(tx *gorm.DB, ownerID, accountID string) (*Account, error) {
	return getOwned(tx, ownerID, accountID)
}

// AdjustBalance adds delta to the account's current balance within tx. It is
// the only path that changes a balance after creation.
func (l *Ledger) AdjustBalance(tx *gorm.DB, accountID string, delta float64, reason string) error {
	if delta == 0 {
		return nil
	}
	if err := adjustBalance(tx, accountID, delta); err != nil {
		return err
	}
	metrics.BalanceAdjustments.WithLabelValues(reason).Inc()
	l.logger.Debug().
		Str("account_id", accountID).
		Float64("delta", delta).
		Str("reason", reason).
		Msg("Balance adjusted")
	return nil
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	ledger *Ledger
}

func NewGinHandlers(ledger *Ledger) *GinHandlers {
	return &GinHandlers{
		ledger: ledger,
	}
}

// CreateAccountHandler handles POST /accounts
func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateAccountInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		account, err := h.ledger.Create(c.Request.Context(), middleware.OwnerID(c), input)
		response.Handle(c, account, err)
	}
}

// ListAccountsHandler handles GET /accounts?skip=&limit=
func (h *GinHandlers) ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := database.ParsePage(c.Query("skip"), c.Query("limit"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		accounts, err := h.ledger.List(c.Request.Context(), middleware.OwnerID(c), page)
		response.Handle(c, accounts, err)
	}
}

// GetAccountHandler handles GET /accounts/:id
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.ledger.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
		response.Handle(c, account, err)
	}
}

// DeleteAccountHandler handles DELETE /accounts/:id
func (h *GinHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("id")
		err := h.ledger.Delete(c.Request.Context(), middleware.OwnerID(c), accountID)
		response.Handle(c, gin.H{"message": "Account deleted successfully", "id": accountID}, err)
	}
}
