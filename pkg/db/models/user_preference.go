package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPreference holds per-user settings. Exactly one row per user, created
// alongside registration.
type UserPreference struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ItemsPerPage      int       `gorm:"column:items_per_page;not null;default:25"`
	RebrickableAPIKey *string   `gorm:"column:rebrickable_api_key"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
