package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateUser(ctx context.Context, user *User) error {
	err := d.db.WithContext(ctx).Create(user).Error
	if err != nil && d.exists(ctx, user.Username, user.Email) {
		return apperr.Conflict("username or email already registered", err)
	}
	return err
}

func (d *Database) exists(ctx context.Context, username, email string) bool {
	var count int64
	d.db.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count)
	return count > 0
}

func (d *Database) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername returns nil, nil when no user has the name.
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := d.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("last_login", at).Error
}
