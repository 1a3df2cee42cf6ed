package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/pkg/middleware"
	"github.com/ksred/tradejournal-api/pkg/response"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid username or password")
	ErrInactiveUser       = apperr.Unauthorized("user account is disabled")
	ErrInvalidToken       = apperr.Unauthorized("invalid token")
)

// Service handles registration, login and token validation
type Service struct {
	db        *Database
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a new authentication service signing tokens with jwtSecret
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
		logger:    zlog.With().Str("service", "auth").Logger(),
	}
}

// Register creates an active user and returns it with a fresh access token
func (s *Service) Register(ctx context.Context, input RegisterInput) (*RegisterResponse, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, apperr.Validation("username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             uuid.New().String(),
		Username:       username,
		Email:          email,
		HashedPassword: string(hash),
		IsActive:       true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	return &RegisterResponse{User: user, TokenResponse: *token}, nil
}

// Login verifies credentials and issues a bearer token. Unknown users, wrong
// passwords and disabled users are all reported as Unauthorized.
func (s *Service) Login(ctx context.Context, input LoginInput) (*TokenResponse, error) {
	user, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password)); err != nil {
		s.logger.Debug().Str("username", user.Username).Msg("Password mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.db.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}

	return s.GenerateToken(user)
}

// Me returns the user behind an authenticated request
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	return s.db.GetUser(ctx, userID)
}

// GenerateToken signs an HS256 token for user expiring after the configured TTL
func (s *Service) GenerateToken(user *User) (*TokenResponse, error) {
	now := s.now()
	expiration := now.Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &TokenResponse{
		AccessToken: tokenString,
		TokenType:   "bearer",
		ExpiresAt:   expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// OwnerFromToken adapts ValidateToken to the middleware's token validator
func (s *Service) OwnerFromToken(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST /auth/register
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.Register(c.Request.Context(), input)
		response.Handle(c, result, err)
	}
}

// LoginHandler handles POST /auth/login
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(c.Request.Context(), input)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		// Login creates no resource, so answer 200 rather than 201
		response.OK(c, token)
	}
}

// MeHandler handles GET /auth/me
func (h *GinHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.Me(c.Request.Context(), middleware.OwnerID(c))
		response.Handle(c, user, err)
	}
}
