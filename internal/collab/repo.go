package collab

import (
	"context"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes collaboration persistence. Owner-scoped mutations
// always filter by owner_id so cross-tenant rows behave as missing.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a collab repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new invite row.
func (r *Repository) Create(ctx context.Context, collab *models.InventoryCollab) error {
	if collab.ID == uuid.Nil {
		collab.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(collab).Error
}

// FindForOwner loads a collaboration row scoped to its owner.
func (r *Repository) FindForOwner(ctx context.Context, ownerID, id uuid.UUID) (*models.InventoryCollab, error) {
	var collab models.InventoryCollab
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&collab).Error
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

// FindByToken loads an invite by its token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.InventoryCollab, error) {
	var collab models.InventoryCollab
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&collab).Error; err != nil {
		return nil, err
	}
	return &collab, nil
}

// FindActivePair returns the single active accepted collaboration for an
// (owner, collaborator) pair, if one exists.
func (r *Repository) FindActivePair(ctx context.Context, ownerID, collaboratorID uuid.UUID) (*models.InventoryCollab, error) {
	var collab models.InventoryCollab
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND collaborator_id = ? AND is_active = ? AND accepted_at IS NOT NULL",
			ownerID, collaboratorID, true).
		First(&collab).Error
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

// Accept flips a pending invite to active in place. The conditional WHERE
// keeps a raced second accept from clobbering the first.
func (r *Repository) Accept(ctx context.Context, id, collaboratorID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryCollab{}).
		Where("id = ? AND is_active = ? AND collaborator_id IS NULL", id, true).
		Updates(map[string]any{
			"collaborator_id": collaboratorID,
			"accepted_at":     at,
		})
	return res.RowsAffected == 1, res.Error
}

// UpdatePermissions rewrites the permission pair on an active row.
func (r *Repository) UpdatePermissions(ctx context.Context, ownerID, id uuid.UUID, canEdit, canDelete bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryCollab{}).
		Where("id = ? AND owner_id = ? AND is_active = ?", id, ownerID, true).
		Updates(map[string]any{
			"can_edit":   canEdit,
			"can_delete": canDelete,
		})
	return res.RowsAffected == 1, res.Error
}

// Revoke seals a row. Repeated calls match zero rows and leave
// revoked_at untouched.
func (r *Repository) Revoke(ctx context.Context, ownerID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryCollab{}).
		Where("id = ? AND owner_id = ? AND is_active = ?", id, ownerID, true).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// Delete hard-deletes a revoked row.
func (r *Repository) Delete(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND is_active = ?", id, ownerID, false).
		Delete(&models.InventoryCollab{})
	return res.RowsAffected == 1, res.Error
}

// ListForOwner returns every collaboration row the owner has created,
// newest first.
func (r *Repository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryCollab, error) {
	var rows []models.InventoryCollab
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// AcceptedForCollaborator lists the inventories a user can switch into.
type AcceptedForCollaboratorRow struct {
	OwnerID       uuid.UUID `gorm:"column:owner_id"`
	OwnerUsername string    `gorm:"column:owner_username"`
	CanEdit       bool      `gorm:"column:can_edit"`
	CanDelete     bool      `gorm:"column:can_delete"`
}

// ListAcceptedForCollaborator returns the active accepted grants held by
// a collaborator, joined with the owning account.
func (r *Repository) ListAcceptedForCollaborator(ctx context.Context, collaboratorID uuid.UUID) ([]AcceptedForCollaboratorRow, error) {
	var rows []AcceptedForCollaboratorRow
	err := r.db.WithContext(ctx).
		Table("inventory_collabs").
		Select("inventory_collabs.owner_id, users.username AS owner_username, inventory_collabs.can_edit, inventory_collabs.can_delete").
		Joins("JOIN users ON users.id = inventory_collabs.owner_id").
		Where("inventory_collabs.collaborator_id = ? AND inventory_collabs.is_active = ? AND inventory_collabs.accepted_at IS NOT NULL",
			collaboratorID, true).
		Order("users.username ASC").
		Scan(&rows).Error
	return rows, err
}

// PurgeRevokedBefore hard-deletes revoked rows sealed before the cutoff.
// Used by scheduled maintenance only.
func (r *Repository) PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_active = ? AND revoked_at IS NOT NULL AND revoked_at < ?", false, cutoff).
		Delete(&models.InventoryCollab{})
	return res.RowsAffected, res.Error
}
