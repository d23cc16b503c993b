package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/DarkSmileee/BlockShelf/pkg/pagination"
)

// ItemDTO is the API shape of one inventory row.
type ItemDTO struct {
	ID                int64     `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Name              string    `json:"name"`
	PartID            string    `json:"part_id"`
	Color             string    `json:"color"`
	QuantityTotal     int       `json:"quantity_total"`
	QuantityUsed      int       `json:"quantity_used"`
	QuantityAvailable int       `json:"quantity_available"`
	StorageLocation   string    `json:"storage_location"`
	ImageURL          string    `json:"image_url"`
	Notes             string    `json:"notes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FromModel converts an inventory row.
func FromModel(item *models.InventoryItem) ItemDTO {
	return ItemDTO{
		ID:                item.ID,
		UserID:            item.UserID,
		Name:              item.Name,
		PartID:            item.PartID,
		Color:             item.Color,
		QuantityTotal:     item.QuantityTotal,
		QuantityUsed:      item.QuantityUsed,
		QuantityAvailable: item.QuantityAvailable(),
		StorageLocation:   item.StorageLocation,
		ImageURL:          item.ImageURL,
		Notes:             item.Notes,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

// ListRequest carries the list query surface: free-text search, sort key,
// direction and page. OwnerID selects whose inventory to view; uuid.Nil
// means the viewer's own.
type ListRequest struct {
	OwnerID uuid.UUID
	Query   string
	Sort    string
	Dir     string
	Page    int
	PerPage int
}

// ListResult is one page of items plus the resolved owner.
type ListResult struct {
	OwnerID    uuid.UUID         `json:"owner_id"`
	Items      []ItemDTO         `json:"items"`
	Pagination pagination.Result `json:"pagination"`
}

// CreateItemRequest creates a row in the resolved owner's inventory.
type CreateItemRequest struct {
	OwnerID         uuid.UUID `json:"owner_id"`
	Name            string    `json:"name"`
	PartID          string    `json:"part_id"`
	Color           string    `json:"color"`
	QuantityTotal   int       `json:"quantity_total"`
	QuantityUsed    int       `json:"quantity_used"`
	StorageLocation string    `json:"storage_location"`
	ImageURL        string    `json:"image_url"`
	Notes           string    `json:"notes"`
}

// UpdateItemRequest patches a row; nil fields stay untouched.
type UpdateItemRequest struct {
	OwnerID         uuid.UUID `json:"owner_id"`
	Name            *string   `json:"name"`
	PartID          *string   `json:"part_id"`
	Color           *string   `json:"color"`
	QuantityTotal   *int      `json:"quantity_total"`
	QuantityUsed    *int      `json:"quantity_used"`
	StorageLocation *string   `json:"storage_location"`
	ImageURL        *string   `json:"image_url"`
	Notes           *string   `json:"notes"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Added    int      `json:"added"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	DupeKeys []string `json:"dupe_keys,omitempty"`
}
