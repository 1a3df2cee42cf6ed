package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is a registered journal owner.
type User struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	HashedPassword string     `gorm:"not null" json:"-"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RegisterResponse struct {
	User *User `json:"user"`
	TokenResponse
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
