package trades

import (
	"encoding/json"
	"time"

	"github.com/ksred/tradejournal-api/internal/accounts"
	"github.com/ksred/tradejournal-api/internal/types"
)

const DefaultInstrument = "XAUUSD"

// Trade is a single position against an account. Result is only defined once
// Status is closed, and a closed trade always carries an ExitDate.
type Trade struct {
	ID           string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID    string            `gorm:"type:varchar(36);not null;index:idx_trades_account_entry,priority:1" json:"account_id"`
	Account      *accounts.Account `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Instrument   string            `gorm:"type:varchar(32);not null;default:XAUUSD" json:"instrument"`
	EntryPrice   float64           `gorm:"not null" json:"entry_price"`
	ExitPrice    *float64          `json:"exit_price"`
	PositionSize float64           `gorm:"not null" json:"position_size"`
	Direction    types.Direction   `gorm:"type:varchar(8);not null" json:"direction"`
	StopLoss     *float64          `json:"stop_loss"`
	TakeProfit   *float64          `json:"take_profit"`
	EntryDate    time.Time         `gorm:"not null;index:idx_trades_account_entry,priority:2" json:"entry_date"`
	ExitDate     *time.Time        `json:"exit_date"`
	PreAnalysis  *string           `gorm:"type:text" json:"pre_analysis"`
	PostAnalysis *string           `gorm:"type:text" json:"post_analysis"`
	Result       *float64          `json:"result"`
	Status       types.TradeStatus `gorm:"type:varchar(8);not null;index" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// PreAnalysis is the checklist captured when a trade is opened.
type PreAnalysis struct {
	DailyTrend            *string `json:"daily_trend"`
	CleanRange            bool    `json:"clean_range"`
	VolumeTime            *string `json:"volume_time"`
	PreviousSessionVolume bool    `json:"previous_session_volume"`
	HTFSetup              *string `json:"htf_setup"`
	LTFConfirmation       *string `json:"ltf_confirmation"`
	Notes                 *string `json:"notes"`
}

const DefaultRating = 3

// PostAnalysis is the review captured when a trade is closed. Rating defaults to 3.
type PostAnalysis struct {
	Notes          *string `json:"notes"`
	Rating         *int    `json:"rating"`
	Emotions       *string `json:"emotions"`
	LessonsLearned *string `json:"lessons_learned"`
}

type OpenTradeInput struct {
	Instrument   string          `json:"instrument"`
	EntryPrice   *float64        `json:"entry_price"`
	PositionSize float64         `json:"position_size"`
	Direction    types.Direction `json:"direction"`
	StopLoss     *float64        `json:"stop_loss"`
	TakeProfit   *float64        `json:"take_profit"`
	PreAnalysis  *PreAnalysis    `json:"pre_analysis"`
}

type CloseTradeInput struct {
	ExitPrice    *float64      `json:"exit_price"`
	ExitDate     *time.Time    `json:"exit_date"`
	Result       *float64      `json:"result"`
	PostAnalysis *PostAnalysis `json:"post_analysis"`
}

// AnalysisPatch replaces whichever payloads are present. Each must be a JSON object.
type AnalysisPatch struct {
	PreAnalysis  json.RawMessage `json:"pre_analysis"`
	PostAnalysis json.RawMessage `json:"post_analysis"`
}

// Filter narrows trade reads used by reporting.
type Filter struct {
	AccountID string
	From      *time.Time
	To        *time.Time
}
