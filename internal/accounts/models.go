package accounts

import "time"

const DefaultAccountType = "Personal"

// Account is a trading book with a running balance. CurrentBalance starts at
// InitialBalance and only changes through AdjustBalance.
type Account struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	AccountName    string    `gorm:"not null" json:"account_name"`
	BrokerName     string    `gorm:"not null" json:"broker_name"`
	InitialBalance float64   `gorm:"not null" json:"initial_balance"`
	CurrentBalance float64   `gorm:"not null" json:"current_balance"`
	AccountType    string    `gorm:"not null;default:Personal" json:"account_type"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateAccountInput struct {
	AccountName    string  `json:"account_name"`
	BrokerName     string  `json:"broker_name"`
	InitialBalance float64 `json:"initial_balance"`
	AccountType    string  `json:"account_type"`
}
