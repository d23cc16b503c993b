package users

import (
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	"github.com/google/uuid"
)

// RegisterRequest contains the payload required to create an account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest authenticates by username or email.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the minted access token and the authenticated user.
type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	User        UserDTO `json:"user"`
}

// UserDTO is the public shape of a user account.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsStaff     bool       `json:"is_staff"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromModel converts a persisted user into its public representation.
func FromModel(user *models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// PreferenceDTO is the public shape of a user's settings row.
type PreferenceDTO struct {
	ItemsPerPage       int    `json:"items_per_page"`
	HasRebrickableKey  bool   `json:"has_rebrickable_key"`
	RebrickableKeyHint string `json:"rebrickable_key_hint,omitempty"`
}

// UpdatePreferenceInput carries a partial preference edit. Nil fields are
// left untouched; an empty API key clears the stored key.
type UpdatePreferenceInput struct {
	ItemsPerPage      *int    `json:"items_per_page" validate:"omitempty,min=1,max=200"`
	RebrickableAPIKey *string `json:"rebrickable_api_key"`
}

// CreateUserDTO is the repository-level insert payload.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
	IsStaff      bool
}

// ToModel materializes the insert payload. The ID is assigned here so the
// row identity is known before the insert returns.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		IsStaff:      d.IsStaff,
		IsActive:     true,
	}
}
