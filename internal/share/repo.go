package share

import (
	"context"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes share-link persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a share repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertActive rotates the user's single active share link in place. The
// conflict target is the partial unique index on (user_id) WHERE is_active,
// so concurrent refreshes converge on one row.
func (r *Repository) UpsertActive(ctx context.Context, userID uuid.UUID, token string, now time.Time, expiresAt *time.Time, maxAccess *int64) error {
	return r.db.WithContext(ctx).Exec(`
INSERT INTO inventory_shares
  (id, user_id, token, is_active, created_at, expires_at, revoked_at, access_count, last_accessed_at, max_access_count)
VALUES (?, ?, ?, ?, ?, ?, NULL, 0, NULL, ?)
ON CONFLICT (user_id) WHERE is_active DO UPDATE SET
  token = excluded.token,
  created_at = excluded.created_at,
  expires_at = excluded.expires_at,
  access_count = 0,
  last_accessed_at = NULL,
  max_access_count = excluded.max_access_count`,
		uuid.New(), userID, token, true, now, expiresAt, maxAccess).Error
}

// FindActiveByUser loads the user's current active share link.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.InventoryShare, error) {
	var share models.InventoryShare
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// FindByToken loads a share by its public token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.InventoryShare, error) {
	var share models.InventoryShare
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&share).Error; err != nil {
		return nil, err
	}
	return &share, nil
}

// Seal flips a share to revoked. Zero rows affected means someone else
// already sealed it.
func (r *Repository) Seal(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryShare{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// RecordAccess bumps the access counter with an in-database increment so
// concurrent public views never lose updates.
func (r *Repository) RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryShare{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": at,
		}).Error
}

// PurgeRevokedBefore hard-deletes sealed share rows older than the cutoff.
// Used by scheduled maintenance only.
func (r *Repository) PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_active = ? AND revoked_at IS NOT NULL AND revoked_at < ?", false, cutoff).
		Delete(&models.InventoryShare{})
	return res.RowsAffected, res.Error
}
