package backup

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, backup *models.Backup) error {
	if backup.ID == uuid.Nil {
		backup.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(backup).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Backup, error) {
	var backup models.Backup
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&backup).Error
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

// ListAll returns every backup record, newest first. Admin surface.
func (r *Repository) ListAll(ctx context.Context) ([]models.Backup, error) {
	var backups []models.Backup
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&backups).Error
	if err != nil {
		return nil, err
	}
	return backups, nil
}

// ListForUser returns one user's backup records, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Backup, error) {
	var backups []models.Backup
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&backups).Error
	if err != nil {
		return nil, err
	}
	return backups, nil
}

// ListScheduledForUser returns the user's scheduled dumps, newest first,
// for retention pruning.
func (r *Repository) ListScheduledForUser(ctx context.Context, userID uuid.UUID) ([]models.Backup, error) {
	var backups []models.Backup
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_scheduled", userID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&backups).Error
	if err != nil {
		return nil, err
	}
	return backups, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Backup{}).Error
}
