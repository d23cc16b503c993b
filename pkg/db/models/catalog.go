package models

import "time"

// Part is a catalog part keyed by its canonical part number.
type Part struct {
	PartNum   string    `gorm:"column:part_num;primaryKey"`
	Name      string    `gorm:"column:name;not null;default:''"`
	PartCatID *int      `gorm:"column:part_cat_id"`
	ImageURL  string    `gorm:"column:image_url;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Color is a catalog color. RGB is six hex characters without the hash.
type Color struct {
	ID        int       `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name      string    `gorm:"column:name;not null;default:''"`
	RGB       string    `gorm:"column:rgb;not null;default:''"`
	IsTrans   bool      `gorm:"column:is_trans;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Element binds a numeric element ID to a (part, color) pair.
type Element struct {
	ElementID string    `gorm:"column:element_id;primaryKey"`
	PartNum   string    `gorm:"column:part_num;not null;index"`
	ColorID   int       `gorm:"column:color_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
