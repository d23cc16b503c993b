package models

import "time"

// AppConfig is the site-wide settings singleton. SingletonID is always 1
// and carries a unique index so get-or-create cannot race into two rows.
type AppConfig struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	SingletonID       int       `gorm:"column:singleton_id;not null;default:1;uniqueIndex"`
	SiteName          string    `gorm:"column:site_name;not null;default:''"`
	ItemsPerPage      *int      `gorm:"column:items_per_page"`
	AllowRegistration *bool     `gorm:"column:allow_registration"`
	DefaultFromEmail  string    `gorm:"column:default_from_email;not null;default:''"`
	RebrickableAPIKey string    `gorm:"column:rebrickable_api_key;not null;default:''"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the table clear of the inventory_* namespace.
func (AppConfig) TableName() string {
	return "app_config"
}
