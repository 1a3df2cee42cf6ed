package calculator

import (
	"github.com/gin-gonic/gin"

	"github.com/ksred/tradejournal-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the calculator endpoints. They are
// stateless and always answer 200 on success.
type GinHandlers struct{}

func NewGinHandlers() *GinHandlers {
	return &GinHandlers{}
}

// PositionSizeHandler handles POST /calculator/position-size
func (h *GinHandlers) PositionSizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input PositionSizeInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		result, err := PositionSize(input)
		respond(c, result, err)
	}
}

// RiskRewardHandler handles POST /calculator/risk-reward
func (h *GinHandlers) RiskRewardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RiskRewardInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		result, err := RiskReward(input)
		respond(c, result, err)
	}
}

// ProfitLossHandler handles POST /calculator/profit-loss
func (h *GinHandlers) ProfitLossHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ProfitLossInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		result, err := ProfitLoss(input)
		respond(c, result, err)
	}
}

func respond(c *gin.Context, result interface{}, err error) {
	if err != nil {
		response.Handle(c, nil, err)
		return
	}
	response.OK(c, result)
}
