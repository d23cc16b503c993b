package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
)

// sortColumns maps the public sort keys onto order expressions.
var sortColumns = map[string]string{
	"name":  "name",
	"part":  "part_id",
	"color": "color",
	"total": "quantity_total",
	"used":  "quantity_used",
	"avail": "(quantity_total - quantity_used)",
	"loc":   "storage_location",
}

// Repository is the data access layer for inventory rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns one page of an owner's items plus the filtered total.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, q, sortKey, dir string, limit, offset int) ([]models.InventoryItem, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("user_id = ?", ownerID)

	if q = strings.TrimSpace(q); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"lower(name) LIKE ? OR lower(part_id) LIKE ? OR lower(color) LIKE ? OR lower(storage_location) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[sortKey]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if strings.EqualFold(dir, "desc") {
		direction = "DESC"
	}

	var items []models.InventoryItem
	err := query.
		Order(column + " " + direction).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every item of an owner, for export and backup dumps.
func (r *Repository) ListAll(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("name ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Get loads one row scoped to its owner.
func (r *Repository) Get(ctx context.Context, ownerID uuid.UUID, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", ownerID, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByTriple resolves the unique (owner, part, color) key.
func (r *Repository) FindByTriple(ctx context.Context, ownerID uuid.UUID, partID, color string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND part_id = ? AND color = ?", ownerID, partID, color).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) Save(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete removes one row scoped to its owner; false means no such row.
func (r *Repository) Delete(ctx context.Context, ownerID uuid.UUID, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", ownerID, id).
		Delete(&models.InventoryItem{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteAll wipes an owner's entire inventory and reports the row count.
func (r *Repository) DeleteAll(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Delete(&models.InventoryItem{})
	return result.RowsAffected, result.Error
}
