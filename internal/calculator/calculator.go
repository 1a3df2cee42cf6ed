package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/types"
)

const places = 2

var hundred = decimal.NewFromInt(100)

type PositionSizeInput struct {
	AccountBalance float64  `json:"account_balance"`
	RiskPercent    float64  `json:"risk_percent"`
	EntryPrice     float64  `json:"entry_price"`
	StopLoss       float64  `json:"stop_loss"`
	ContractSize   *float64 `json:"contract_size"`
}

type PositionSizeResult struct {
	RiskAmount   float64 `json:"risk_amount"`
	PriceRisk    float64 `json:"price_risk"`
	PositionSize float64 `json:"position_size"`
}

// PositionSize sizes a position so that hitting the stop loses risk_percent of the balance.
func PositionSize(in PositionSizeInput) (*PositionSizeResult, error) {
	if in.AccountBalance <= 0 {
		return nil, apperr.Validation("account_balance must be greater than 0")
	}
	if in.RiskPercent <= 0 || in.RiskPercent > 100 {
		return nil, apperr.Validation("risk_percent must be greater than 0 and at most 100")
	}

	contract := decimal.NewFromInt(1)
	if in.ContractSize != nil {
		if *in.ContractSize <= 0 {
			return nil, apperr.Validation("contract_size must be greater than 0")
		}
		contract = decimal.NewFromFloat(*in.ContractSize)
	}

	priceRisk := decimal.NewFromFloat(in.EntryPrice).Sub(decimal.NewFromFloat(in.StopLoss)).Abs()
	if !priceRisk.IsPositive() {
		return nil, apperr.Validation("entry_price and stop_loss must differ")
	}

	riskAmount := decimal.NewFromFloat(in.AccountBalance).Mul(decimal.NewFromFloat(in.RiskPercent)).Div(hundred)
	size := riskAmount.Div(priceRisk.Mul(contract))

	return &PositionSizeResult{
		RiskAmount:   round(riskAmount),
		PriceRisk:    round(priceRisk),
		PositionSize: round(size),
	}, nil
}

type RiskRewardInput struct {
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Direction  *string `json:"direction"`
}

type RiskRewardResult struct {
	Risk   float64 `json:"risk"`
	Reward float64 `json:"reward"`
	Ratio  float64 `json:"ratio"`
}

// RiskReward compares the distance to target with the distance to stop. When a
// direction is given the stop and target must sit on the correct sides of entry.
func RiskReward(in RiskRewardInput) (*RiskRewardResult, error) {
	entry := decimal.NewFromFloat(in.EntryPrice)
	stop := decimal.NewFromFloat(in.StopLoss)
	target := decimal.NewFromFloat(in.TakeProfit)

	if in.Direction != nil {
		dir, err := types.ParseDirection(*in.Direction)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		switch dir {
		case types.DirectionLong:
			if !stop.LessThan(entry) || !target.GreaterThan(entry) {
				return nil, apperr.Validation("long trades need stop_loss below and take_profit above entry_price")
			}
		case types.DirectionShort:
			if !stop.GreaterThan(entry) || !target.LessThan(entry) {
				return nil, apperr.Validation("short trades need stop_loss above and take_profit below entry_price")
			}
		}
	}

	risk := entry.Sub(stop).Abs()
	if !risk.IsPositive() {
		return nil, apperr.Validation("entry_price and stop_loss must differ")
	}
	reward := target.Sub(entry).Abs()

	return &RiskRewardResult{
		Risk:   round(risk),
		Reward: round(reward),
		Ratio:  round(reward.Div(risk)),
	}, nil
}

type ProfitLossInput struct {
	Direction    types.Direction `json:"direction"`
	EntryPrice   float64         `json:"entry_price"`
	ExitPrice    float64         `json:"exit_price"`
	PositionSize float64         `json:"position_size"`
}

type ProfitLossResult struct {
	Result        float64 `json:"result"`
	PriceMove     float64 `json:"price_move"`
	ReturnPercent float64 `json:"return_percent"`
}

// ProfitLoss uses the same signed formula the trade engine applies on close.
func ProfitLoss(in ProfitLossInput) (*ProfitLossResult, error) {
	if !in.Direction.Valid() {
		return nil, apperr.Validation("direction must be long or short")
	}
	if in.PositionSize <= 0 {
		return nil, apperr.Validation("position_size must be greater than 0")
	}
	if in.EntryPrice <= 0 {
		return nil, apperr.Validation("entry_price must be greater than 0")
	}

	entry := decimal.NewFromFloat(in.EntryPrice)
	move := decimal.NewFromFloat(in.ExitPrice).Sub(entry)
	if in.Direction == types.DirectionShort {
		move = move.Neg()
	}
	result := move.Mul(decimal.NewFromFloat(in.PositionSize))

	return &ProfitLossResult{
		Result:        round(result),
		PriceMove:     round(move),
		ReturnPercent: round(move.Div(entry).Mul(hundred)),
	}, nil
}

func round(d decimal.Decimal) float64 {
	return d.Round(places).InexactFloat64()
}
