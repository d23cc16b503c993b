package collab

import (
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/google/uuid"
)

// CreateInviteRequest is the payload for inviting a collaborator.
type CreateInviteRequest struct {
	Email     string `json:"email" validate:"required,email"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
}

// UpdatePermissionsRequest rewrites the permission pair on an active
// collaboration.
type UpdatePermissionsRequest struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// CollabDTO is the owner-facing shape of a collaboration row.
type CollabDTO struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	CollaboratorID *uuid.UUID `json:"collaborator_id,omitempty"`
	InvitedEmail   string     `json:"invited_email"`
	Token          string     `json:"token,omitempty"`
	Status         string     `json:"status"`
	CanEdit        bool       `json:"can_edit"`
	CanDelete      bool       `json:"can_delete"`
	CreatedAt      time.Time  `json:"created_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// FromModel converts a collaboration row. The invite token is only
// included while the invite is still pending.
func FromModel(collab *models.InventoryCollab) CollabDTO {
	dto := CollabDTO{
		ID:             collab.ID,
		OwnerID:        collab.OwnerID,
		CollaboratorID: collab.CollaboratorID,
		InvitedEmail:   collab.InvitedEmail,
		Status:         collab.Status(),
		CanEdit:        collab.CanEdit,
		CanDelete:      collab.CanDelete,
		CreatedAt:      collab.CreatedAt,
		AcceptedAt:     collab.AcceptedAt,
		RevokedAt:      collab.RevokedAt,
	}
	if dto.Status == models.CollabStatusPending {
		dto.Token = collab.Token
	}
	return dto
}

// SharedInventoryDTO is one entry in a collaborator's inventory switcher.
type SharedInventoryDTO struct {
	OwnerID       uuid.UUID `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	CanEdit       bool      `json:"can_edit"`
	CanDelete     bool      `json:"can_delete"`
}
