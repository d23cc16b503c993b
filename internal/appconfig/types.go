package appconfig

// Defaults applied when neither the database row nor the environment
// provides a value.
const (
	DefaultSiteName     = "BlockShelf"
	DefaultItemsPerPage = 25
)

// UpdateInput carries an admin edit of the site configuration. Nil fields
// are left untouched; empty strings clear a value back to "unset".
type UpdateInput struct {
	SiteName          *string `json:"site_name"`
	ItemsPerPage      *int    `json:"items_per_page" validate:"omitempty,min=1,max=200"`
	AllowRegistration *bool   `json:"allow_registration"`
	DefaultFromEmail  *string `json:"default_from_email" validate:"omitempty,email|eq="`
	RebrickableAPIKey *string `json:"rebrickable_api_key"`
}

// Effective is the fully resolved configuration: database value when set,
// then environment, then built-in default.
type Effective struct {
	SiteName          string `json:"site_name"`
	ItemsPerPage      int    `json:"items_per_page"`
	AllowRegistration bool   `json:"allow_registration"`
	DefaultFromEmail  string `json:"default_from_email"`
	RebrickableAPIKey string `json:"rebrickable_api_key"`
}

// EnvOverrides is the environment layer of the resolution chain, populated
// from process configuration at startup.
type EnvOverrides struct {
	SiteName          string
	ItemsPerPage      int
	AllowRegistration *bool
	DefaultFromEmail  string
	RebrickableAPIKey string
}
