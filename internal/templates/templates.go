package templates

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
	"github.com/ksred/tradejournal-api/pkg/middleware"
	"github.com/ksred/tradejournal-api/pkg/response"
)

// Store keeps each owner's trade setup templates.
type Store struct {
	db     *Database
	logger zerolog.Logger
}

func NewStore(gormDB *gorm.DB) *Store {
	return &Store{
		db:     NewDatabase(gormDB),
		logger: zlog.With().Str("service", "templates").Logger(),
	}
}

func (s *Store) Create(ctx context.Context, ownerID string, input CreateTemplateInput) (*Template, error) {
	name := strings.TrimSpace(input.TemplateName)
	if name == "" {
		return nil, apperr.Validation("template_name is required")
	}
	if err := validateRatio(input.RiskRewardRatio); err != nil {
		return nil, err
	}
	market := strings.TrimSpace(input.Market)
	if market == "" {
		market = DefaultMarket
	}

	now := time.Now().UTC()
	tpl := &Template{
		ID:               uuid.New().String(),
		UserID:           ownerID,
		TemplateName:     name,
		Market:           market,
		SetupType:        input.SetupType,
		EntryCriteria:    input.EntryCriteria,
		ExitCriteria:     input.ExitCriteria,
		RiskRewardRatio:  input.RiskRewardRatio,
		PositionSizeRule: input.PositionSizeRule,
		Notes:            input.Notes,
		Tags:             input.Tags,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.CreateTemplate(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info().Str("template_id", tpl.ID).Str("owner_id", ownerID).Msg("Template created")
	return tpl, nil
}

func (s *Store) List(ctx context.Context, ownerID string, page database.Page) ([]Template, error) {
	return s.db.ListTemplates(ctx, ownerID, page)
}

func (s *Store) Get(ctx context.Context, ownerID, id string) (*Template, error) {
	return s.db.GetTemplate(ctx, ownerID, id)
}

// Update applies patch and returns the stored template.
func (s *Store) Update(ctx context.Context, ownerID, id string, patch TemplatePatch) (*Template, error) {
	if patch.TemplateName != nil && strings.TrimSpace(*patch.TemplateName) == "" {
		return nil, apperr.Validation("template_name cannot be empty")
	}
	if patch.Market != nil && strings.TrimSpace(*patch.Market) == "" {
		return nil, apperr.Validation("market cannot be empty")
	}
	if err := validateRatio(patch.RiskRewardRatio); err != nil {
		return nil, err
	}

	fields := patch.fields()
	if len(fields) == 0 {
		return s.db.GetTemplate(ctx, ownerID, id)
	}
	fields["updated_at"] = time.Now().UTC()

	if err := s.db.UpdateTemplate(ctx, ownerID, id, fields); err != nil {
		return nil, err
	}
	return s.db.GetTemplate(ctx, ownerID, id)
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	return s.db.DeleteTemplate(ctx, ownerID, id)
}

func validateRatio(r *float64) error {
	if r != nil && *r < 0 {
		return apperr.Validation("risk_reward_ratio cannot be negative")
	}
	return nil
}

// GinHandlers contains HTTP handlers for template endpoints
type GinHandlers struct {
	store *Store
}

func NewGinHandlers(store *Store) *GinHandlers {
	return &GinHandlers{
		store: store,
	}
}

func (h *GinHandlers) CreateTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateTemplateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		tpl, err := h.store.Create(c.Request.Context(), middleware.OwnerID(c), input)
		response.Handle(c, tpl, err)
	}
}

func (h *GinHandlers) ListTemplatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := database.ParsePage(c.Query("skip"), c.Query("limit"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		templates, err := h.store.List(c.Request.Context(), middleware.OwnerID(c), page)
		response.Handle(c, templates, err)
	}
}

func (h *GinHandlers) GetTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tpl, err := h.store.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
		response.Handle(c, tpl, err)
	}
}

func (h *GinHandlers) UpdateTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch TemplatePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		tpl, err := h.store.Update(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), patch)
		response.Handle(c, tpl, err)
	}
}

func (h *GinHandlers) DeleteTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := h.store.Delete(c.Request.Context(), middleware.OwnerID(c), id)
		response.Handle(c, gin.H{"message": "Template deleted successfully", "id": id}, err)
	}
}
