package share

import (
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/google/uuid"
)

// CreateShareRequest configures a new or refreshed public link.
type CreateShareRequest struct {
	ExpiresInDays  *int   `json:"expires_in_days" validate:"omitempty,min=1,max=365"`
	MaxAccessCount *int64 `json:"max_access_count" validate:"omitempty,min=1"`
}

// ShareDTO is the owner-facing shape of a share link.
type ShareDTO struct {
	ID             uuid.UUID  `json:"id"`
	Token          string     `json:"token"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AccessCount    int64      `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	MaxAccessCount *int64     `json:"max_access_count,omitempty"`
}

// FromModel converts a share row into its owner-facing representation.
func FromModel(share *models.InventoryShare) ShareDTO {
	return ShareDTO{
		ID:             share.ID,
		Token:          share.Token,
		IsActive:       share.IsActive,
		CreatedAt:      share.CreatedAt,
		ExpiresAt:      share.ExpiresAt,
		AccessCount:    share.AccessCount,
		LastAccessedAt: share.LastAccessedAt,
		MaxAccessCount: share.MaxAccessCount,
	}
}

// ResolvedShare is what the public gate hands to the share view: the
// owning user plus the live share row.
type ResolvedShare struct {
	OwnerID uuid.UUID
	Share   *models.InventoryShare
}
