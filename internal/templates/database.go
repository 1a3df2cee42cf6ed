package templates

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/apperr"
	"github.com/ksred/tradejournal-api/internal/database"
)

var ErrTemplateNotFound = apperr.NotFound("template not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateTemplate(ctx context.Context, tpl *Template) error {
	return d.db.WithContext(ctx).Create(tpl).Error
}

func (d *Database) ListTemplates(ctx context.Context, ownerID string, page database.Page) ([]Template, error) {
	templates := []Template{}
	err := d.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Scopes(database.Paginate(page)).
		Find(&templates).Error
	return templates, err
}

func (d *Database) GetTemplate(ctx context.Context, ownerID, id string) (*Template, error) {
	var tpl Template
	if err := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (d *Database) UpdateTemplate(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	res := d.db.WithContext(ctx).Model(&Template{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (d *Database) DeleteTemplate(ctx context.Context, ownerID, id string) error {
	res := d.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&Template{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
