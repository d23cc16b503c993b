package models

import (
	"time"

	"github.com/google/uuid"
)

// Collaboration status values derived from the row's nullable fields.
const (
	CollabStatusPending = "pending"
	CollabStatusActive  = "active"
	CollabStatusRevoked = "revoked"
)

// InventoryCollab is a collaboration invite and, once accepted, the grant
// itself. A pending row has no collaborator; revocation seals the row
// rather than deleting it.
type InventoryCollab struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	CollaboratorID *uuid.UUID `gorm:"column:collaborator_id;type:uuid;index"`
	InvitedEmail   string     `gorm:"column:invited_email;not null"`
	Token          string     `gorm:"column:token;not null;uniqueIndex"`
	CanEdit        bool       `gorm:"column:can_edit;not null;default:false"`
	CanDelete      bool       `gorm:"column:can_delete;not null;default:false"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	AcceptedAt     *time.Time `gorm:"column:accepted_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
}

// Status derives the lifecycle state. Revoked wins over everything else.
func (c InventoryCollab) Status() string {
	if !c.IsActive || c.RevokedAt != nil {
		return CollabStatusRevoked
	}
	if c.CollaboratorID != nil && c.AcceptedAt != nil {
		return CollabStatusActive
	}
	return CollabStatusPending
}
