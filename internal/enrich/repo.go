package enrich

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
)

// Repository reads and patches inventory rows for the batcher.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListCandidates returns the next batch of rows still missing a real name
// or an image, in id order so the caller can cursor through them.
func (r *Repository) ListCandidates(ctx context.Context, userID uuid.UUID, afterID int64, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id > ?", userID, afterID).
		Where("(lower(name) = ? OR image_url = '') AND part_id <> ''", "unknown").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// PatchFields applies the resolved fields to one row inside the caller's
// transaction.
func (r *Repository) PatchFields(tx *gorm.DB, id int64, updates map[string]any) error {
	return tx.Model(&models.InventoryItem{}).Where("id = ?", id).Updates(updates).Error
}
