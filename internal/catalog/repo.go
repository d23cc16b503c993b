package catalog

import (
	"context"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"gorm.io/gorm"
)

// Repository is the shared catalog store. Rows are never user-owned and
// are upserted concurrently by many lookups, so every write converges on
// the external identifier.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetPart loads a part by its exact part number.
func (r *Repository) GetPart(ctx context.Context, partNum string) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).First(&part, "part_num = ?", partNum).Error; err != nil {
		return nil, err
	}
	return &part, nil
}

// GetColor loads a color by its catalog ID.
func (r *Repository) GetColor(ctx context.Context, id int) (*models.Color, error) {
	var color models.Color
	if err := r.db.WithContext(ctx).First(&color, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &color, nil
}

// ElementDetail is an element joined with its part and color.
type ElementDetail struct {
	ElementID string `gorm:"column:element_id"`
	PartNum   string `gorm:"column:part_num"`
	PartName  string `gorm:"column:part_name"`
	ImageURL  string `gorm:"column:image_url"`
	ColorID   int    `gorm:"column:color_id"`
	ColorName string `gorm:"column:color_name"`
}

// GetElement loads an element with its linked part and color resolved.
func (r *Repository) GetElement(ctx context.Context, elementID string) (*ElementDetail, error) {
	var detail ElementDetail
	err := r.db.WithContext(ctx).
		Table("elements").
		Select("elements.element_id, elements.part_num, parts.name AS part_name, parts.image_url, elements.color_id, colors.name AS color_name").
		Joins("JOIN parts ON parts.part_num = elements.part_num").
		Joins("JOIN colors ON colors.id = elements.color_id").
		Where("elements.element_id = ?", elementID).
		Take(&detail).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpsertPart inserts or refreshes a part. Non-empty stored fields are
// never replaced by empty incoming ones, so a sparse source cannot erase
// data a richer source already provided.
func (r *Repository) UpsertPart(ctx context.Context, part models.Part) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Exec(`
INSERT INTO parts (part_num, name, part_cat_id, image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (part_num) DO UPDATE SET
  name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE parts.name END,
  part_cat_id = COALESCE(excluded.part_cat_id, parts.part_cat_id),
  image_url = CASE WHEN excluded.image_url <> '' THEN excluded.image_url ELSE parts.image_url END,
  updated_at = excluded.updated_at`,
		part.PartNum, part.Name, part.PartCatID, part.ImageURL, now, now).Error
}

// UpsertColor inserts or refreshes a color.
func (r *Repository) UpsertColor(ctx context.Context, color models.Color) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Exec(`
INSERT INTO colors (id, name, rgb, is_trans, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE colors.name END,
  rgb = CASE WHEN excluded.rgb <> '' THEN excluded.rgb ELSE colors.rgb END,
  is_trans = excluded.is_trans,
  updated_at = excluded.updated_at`,
		color.ID, color.Name, color.RGB, color.IsTrans, now, now).Error
}

// UpsertElement links an element to its part and color, creating
// placeholder rows first so the foreign keys always resolve.
func (r *Repository) UpsertElement(ctx context.Context, elementID, partNum string, colorID int) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Exec(`
INSERT INTO parts (part_num, name, image_url, created_at, updated_at)
VALUES (?, '', '', ?, ?)
ON CONFLICT (part_num) DO NOTHING`, partNum, now, now).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Exec(`
INSERT INTO colors (id, name, rgb, is_trans, created_at, updated_at)
VALUES (?, '', '', ?, ?, ?)
ON CONFLICT (id) DO NOTHING`, colorID, false, now, now).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
INSERT INTO elements (element_id, part_num, color_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (element_id) DO UPDATE SET
  part_num = excluded.part_num,
  color_id = excluded.color_id,
  updated_at = excluded.updated_at`,
		elementID, partNum, colorID, now, now).Error
}

// PartExists reports whether a part row is already present.
func (r *Repository) PartExists(ctx context.Context, partNum string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Part{}).Where("part_num = ?", partNum).Count(&count).Error
	return count > 0, err
}

// ColorExists reports whether a color row is already present.
func (r *Repository) ColorExists(ctx context.Context, id int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Color{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ElementExists reports whether an element row is already present.
func (r *Repository) ElementExists(ctx context.Context, elementID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Element{}).Where("element_id = ?", elementID).Count(&count).Error
	return count > 0, err
}
