package notes

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

// List returns the user's notes, most recently updated first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.Note, error) {
	var notes []models.Note
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *Repository) Get(ctx context.Context, userID, id uuid.UUID) (*models.Note, error) {
	var note models.Note
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *Repository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *Repository) Save(ctx context.Context, note *models.Note) error {
	return r.db.WithContext(ctx).Save(note).Error
}

// Delete removes one note scoped to its owner; false means no such row.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&models.Note{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
