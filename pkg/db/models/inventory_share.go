package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryShare is a public read-only share link. A partial unique index
// keeps at most one active row per user; refreshing rotates the token in
// place through an upsert against that index.
type InventoryShare struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Token          string     `gorm:"column:token;not null;uniqueIndex"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
	AccessCount    int64      `gorm:"column:access_count;not null;default:0"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at"`
	MaxAccessCount *int64     `gorm:"column:max_access_count"`
}

// Expired evaluates the share's three expiry conditions at the given time.
func (s InventoryShare) Expired(now time.Time) bool {
	if !s.IsActive || s.RevokedAt != nil {
		return true
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return true
	}
	if s.MaxAccessCount != nil && s.AccessCount >= *s.MaxAccessCount {
		return true
	}
	return false
}
