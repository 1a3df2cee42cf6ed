package templates

import "time"

const DefaultMarket = "Gold"

// Template is a saved trade setup. It has no lifecycle and never touches balances.
type Template struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	TemplateName     string    `gorm:"not null" json:"template_name"`
	Market           string    `gorm:"not null;default:Gold" json:"market"`
	SetupType        *string   `json:"setup_type"`
	EntryCriteria    *string   `gorm:"type:text" json:"entry_criteria"`
	ExitCriteria     *string   `gorm:"type:text" json:"exit_criteria"`
	RiskRewardRatio  *float64  `json:"risk_reward_ratio"`
	PositionSizeRule *string   `json:"position_size_rule"`
	Notes            *string   `gorm:"type:text" json:"notes"`
	Tags             *string   `json:"tags"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CreateTemplateInput struct {
	TemplateName     string   `json:"template_name"`
	Market           string   `json:"market"`
	SetupType        *string  `json:"setup_type"`
	EntryCriteria    *string  `json:"entry_criteria"`
	ExitCriteria     *string  `json:"exit_criteria"`
	RiskRewardRatio  *float64 `json:"risk_reward_ratio"`
	PositionSizeRule *string  `json:"position_size_rule"`
	Notes            *string  `json:"notes"`
	Tags             *string  `json:"tags"`
}

// TemplatePatch changes only the fields that are non-nil.
type TemplatePatch struct {
	TemplateName     *string  `json:"template_name"`
	Market           *string  `json:"market"`
	SetupType        *string  `json:"setup_type"`
	EntryCriteria    *string  `json:"entry_criteria"`
	ExitCriteria     *string  `json:"exit_criteria"`
	RiskRewardRatio  *float64 `json:"risk_reward_ratio"`
	PositionSizeRule *string  `json:"position_size_rule"`
	Notes            *string  `json:"notes"`
	Tags             *string  `json:"tags"`
}

func (p TemplatePatch) fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.TemplateName != nil {
		fields["template_name"] = *p.TemplateName
	}
	if p.Market != nil {
		fields["market"] = *p.Market
	}
	if p.SetupType != nil {
		fields["setup_type"] = *p.SetupType
	}
	if p.EntryCriteria != nil {
		fields["entry_criteria"] = *p.EntryCriteria
	}
	if p.ExitCriteria != nil {
		fields["exit_criteria"] = *p.ExitCriteria
	}
	if p.RiskRewardRatio != nil {
		fields["risk_reward_ratio"] = *p.RiskRewardRatio
	}
	if p.PositionSizeRule != nil {
		fields["position_size_rule"] = *p.PositionSizeRule
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.Tags != nil {
		fields["tags"] = *p.Tags
	}
	return fields
}
