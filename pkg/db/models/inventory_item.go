package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is one (part, color) line in a user's inventory. The integer
// primary key is load-bearing: the bulk enrichment batcher pages with
// `id > after_id` ordered ascending.
type InventoryItem struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:uniq_inventory_items_user_part_color"`
	Name            string    `gorm:"column:name;not null"`
	PartID          string    `gorm:"column:part_id;not null;uniqueIndex:uniq_inventory_items_user_part_color"`
	Color           string    `gorm:"column:color;not null;default:'';uniqueIndex:uniq_inventory_items_user_part_color"`
	QuantityTotal   int       `gorm:"column:quantity_total;not null;default:0"`
	QuantityUsed    int       `gorm:"column:quantity_used;not null;default:0"`
	StorageLocation string    `gorm:"column:storage_location;not null;default:''"`
	ImageURL        string    `gorm:"column:image_url;not null;default:''"`
	Notes           string    `gorm:"column:notes;not null;default:''"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// QuantityAvailable is derived, floored at zero.
func (i InventoryItem) QuantityAvailable() int {
	avail := i.QuantityTotal - i.QuantityUsed
	if avail < 0 {
		return 0
	}
	return avail
}
