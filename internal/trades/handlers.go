package trades

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/pkg/middleware"
	"github.com/ksred/tradejournal-api/pkg/response"
)

// GinHandlers contains HTTP handlers for trade endpoints
type GinHandlers struct {
	engine *Engine
}

func NewGinHandlers(engine *Engine) *GinHandlers {
	return &GinHandlers{
		engine: engine,
	}
}

// OpenTradeHandler handles POST /trades?account_id=
func (h *GinHandlers) OpenTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Query("account_id")
		if accountID == "" {
			response.BadRequest(c, "account_id query parameter is required")
			return
		}

		var input OpenTradeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.engine.Open(c.Request.Context(), middleware.OwnerID(c), accountID, input)
		response.Handle(c, trade, err)
	}
}

// ListTradesHandler handles GET /trades
func (h *GinHandlers) ListTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := database.ParsePage(c.Query("skip"), c.Query("limit"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		trades, err := h.engine.ListForOwner(c.Request.Context(), middleware.OwnerID(c), page)
		response.Handle(c, trades, err)
	}
}

// ListAccountTradesHandler handles GET /trades/account/:account_id
func (h *GinHandlers) ListAccountTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := database.ParsePage(c.Query("skip"), c.Query("limit"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		trades, err := h.engine.ListForAccount(c.Request.Context(), middleware.OwnerID(c), c.Param("account_id"), page)
		response.Handle(c, trades, err)
	}
}

// GetTradeHandler handles GET /trades/:id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		trade, err := h.engine.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
		response.Handle(c, trade, err)
	}
}

// CloseTradeHandler handles PATCH /trades/:id/close
func (h *GinHandlers) CloseTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// The body is optional, including when sent chunked with no content.
		var input CloseTradeInput
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.engine.Close(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), input)
		response.Handle(c, trade, err)
	}
}

// UpdateAnalysisHandler handles PATCH /trades/:id/analysis
func (h *GinHandlers) UpdateAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch AnalysisPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		trade, err := h.engine.UpdateAnalysis(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), patch)
		response.Handle(c, trade, err)
	}
}

// DeleteTradeHandler handles DELETE /trades/:id
func (h *GinHandlers) DeleteTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID := c.Param("id")
		err := h.engine.Delete(c.Request.Context(), middleware.OwnerID(c), tradeID)
		response.Handle(c, gin.H{"message": "Trade deleted successfully", "id": tradeID}, err)
	}
}
