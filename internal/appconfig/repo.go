package appconfig

import (
	"context"
	"errors"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"gorm.io/gorm"
)

// Repository encapsulates settings persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a settings repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSolo loads the singleton row, creating it when missing. The unique
// index on singleton_id turns a create race into a retryable conflict.
func (r *Repository) GetSolo(ctx context.Context) (models.AppConfig, error) {
	var cfg models.AppConfig
	err := r.db.WithContext(ctx).Where("singleton_id = ?", 1).First(&cfg).Error
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AppConfig{}, err
	}

	cfg = models.AppConfig{SingletonID: 1}
	if createErr := r.db.WithContext(ctx).Create(&cfg).Error; createErr != nil {
		// lost the race: someone else created it
		var existing models.AppConfig
		if loadErr := r.db.WithContext(ctx).Where("singleton_id = ?", 1).First(&existing).Error; loadErr == nil {
			return existing, nil
		}
		return models.AppConfig{}, createErr
	}
	return cfg, nil
}

// Save persists the singleton row.
func (r *Repository) Save(ctx context.Context, cfg *models.AppConfig) error {
	cfg.SingletonID = 1
	return r.db.WithContext(ctx).Save(cfg).Error
}
