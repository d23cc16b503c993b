package inventory

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
	"github.com/DarkSmileee/BlockShelf/pkg/pagination"
	"github.com/DarkSmileee/BlockShelf/pkg/sanitize"
)

const fallbackItemName = "Unknown"

// Service is the inventory CRUD surface. Every viewer-facing operation
// resolves the effective owner through the collaboration guard first.
type Service interface {
	List(ctx context.Context, viewerID uuid.UUID, req ListRequest) (ListResult, error)
	// ListForOwner skips the guard; the share gate authenticates by token
	// and the result is read-only.
	ListForOwner(ctx context.Context, ownerID uuid.UUID, req ListRequest) (ListResult, error)
	Create(ctx context.Context, viewerID uuid.UUID, req CreateItemRequest) (ItemDTO, error)
	Update(ctx context.Context, viewerID uuid.UUID, id int64, req UpdateItemRequest) (ItemDTO, error)
	Delete(ctx context.Context, viewerID, ownerID uuid.UUID, id int64) error
	// WipeAll destroys the viewer's own inventory, never a shared one.
	WipeAll(ctx context.Context, viewerID uuid.UUID) (int64, error)
	CheckDuplicate(ctx context.Context, viewerID uuid.UUID, req CheckDuplicateRequest) (bool, error)
	ExportCSV(ctx context.Context, viewerID, ownerID uuid.UUID, w io.Writer) error
	Import(ctx context.Context, viewerID uuid.UUID, filename string, file io.Reader, size int64) (ImportResult, error)
}

// CheckDuplicateRequest probes the unique (owner, part, color) key before
// the client submits a create form.
type CheckDuplicateRequest struct {
	OwnerID uuid.UUID `json:"owner_id"`
	PartID  string    `json:"part_id"`
	Color   string    `json:"color"`
}

type accessGuard interface {
	ResolveOwner(ctx context.Context, viewerID, requestedOwnerID uuid.UUID) (uuid.UUID, error)
	CanEdit(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error)
	CanDelete(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error)
}

type siteConfig interface {
	Effective(ctx context.Context) (appconfig.Effective, error)
}

type prefStore interface {
	GetPreference(ctx context.Context, userID uuid.UUID) (*models.UserPreference, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo       *Repository
	DB         txRunner
	Guard      accessGuard
	Prefs      prefStore
	SiteConfig siteConfig
	Config     config.ImportConfig
	Logger     *logger.Logger
}

type service struct {
	repo    *Repository
	db      txRunner
	guard   accessGuard
	prefs   prefStore
	siteCfg siteConfig
	cfg     config.ImportConfig
	logger  *logger.Logger
}

// NewService validates the dependency set.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory repo is required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory tx runner is required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory access guard is required")
	}
	if params.Prefs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory preference store is required")
	}
	if params.SiteConfig == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory site config is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory logger is required")
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		guard:   params.Guard,
		prefs:   params.Prefs,
		siteCfg: params.SiteConfig,
		cfg:     params.Config,
		logger:  params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, viewerID uuid.UUID, req ListRequest) (ListResult, error) {
	ownerID, err := s.guard.ResolveOwner(ctx, viewerID, req.OwnerID)
	if err != nil {
		return ListResult{}, err
	}
	if req.PerPage <= 0 {
		req.PerPage = s.viewerPerPage(ctx, viewerID)
	}
	return s.listPage(ctx, ownerID, req)
}

func (s *service) ListForOwner(ctx context.Context, ownerID uuid.UUID, req ListRequest) (ListResult, error) {
	if ownerID == uuid.Nil {
		return ListResult{}, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if req.PerPage <= 0 {
		req.PerPage = s.sitePerPage(ctx)
	}
	return s.listPage(ctx, ownerID, req)
}

func (s *service) listPage(ctx context.Context, ownerID uuid.UUID, req ListRequest) (ListResult, error) {
	params := pagination.Params{Page: req.Page, PerPage: req.PerPage}.Normalize()

	items, total, err := s.repo.List(ctx, ownerID, req.Query, req.Sort, req.Dir, params.PerPage, params.Offset())
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}

	dtos := make([]ItemDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, FromModel(&items[i]))
	}
	return ListResult{
		OwnerID:    ownerID,
		Items:      dtos,
		Pagination: pagination.NewResult(params, total),
	}, nil
}

func (s *service) Create(ctx context.Context, viewerID uuid.UUID, req CreateItemRequest) (ItemDTO, error) {
	ownerID, err := s.requireEdit(ctx, viewerID, req.OwnerID)
	if err != nil {
		return ItemDTO{}, err
	}

	item := models.InventoryItem{
		UserID:          ownerID,
		Name:            sanitize.Text(req.Name),
		PartID:          strings.TrimSpace(req.PartID),
		Color:           sanitize.Text(req.Color),
		QuantityTotal:   req.QuantityTotal,
		QuantityUsed:    req.QuantityUsed,
		StorageLocation: sanitize.Text(req.StorageLocation),
		ImageURL:        sanitize.URL(req.ImageURL),
		Notes:           sanitize.Text(req.Notes),
	}
	if item.Name == "" {
		item.Name = fallbackItemName
	}
	if item.PartID == "" {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "part_id is required").
			WithDetails(map[string]string{"part_id": "required"})
	}
	if err := validateQuantities(item.QuantityTotal, item.QuantityUsed); err != nil {
		return ItemDTO{}, err
	}

	if existing, err := s.repo.FindByTriple(ctx, ownerID, item.PartID, item.Color); err == nil && existing != nil {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "an item with this part and color already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate item")
	}

	if err := s.repo.Create(ctx, &item); err != nil {
		if db.IsUniqueViolation(err, "uniq_inventory_items_user_part_color") {
			return ItemDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "an item with this part and color already exists")
		}
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
	}
	return FromModel(&item), nil
}

func (s *service) Update(ctx context.Context, viewerID uuid.UUID, id int64, req UpdateItemRequest) (ItemDTO, error) {
	ownerID, err := s.requireEdit(ctx, viewerID, req.OwnerID)
	if err != nil {
		return ItemDTO{}, err
	}

	item, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ItemDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
		}
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}

	if req.Name != nil {
		if name := sanitize.Text(*req.Name); name != "" {
			item.Name = name
		}
	}
	if req.PartID != nil {
		if partID := strings.TrimSpace(*req.PartID); partID != "" {
			item.PartID = partID
		}
	}
	if req.Color != nil {
		item.Color = sanitize.Text(*req.Color)
	}
	if req.QuantityTotal != nil {
		item.QuantityTotal = *req.QuantityTotal
	}
	if req.QuantityUsed != nil {
		item.QuantityUsed = *req.QuantityUsed
	}
	if req.StorageLocation != nil {
		item.StorageLocation = sanitize.Text(*req.StorageLocation)
	}
	if req.ImageURL != nil {
		item.ImageURL = sanitize.URL(*req.ImageURL)
	}
	if req.Notes != nil {
		item.Notes = sanitize.Text(*req.Notes)
	}
	if err := validateQuantities(item.QuantityTotal, item.QuantityUsed); err != nil {
		return ItemDTO{}, err
	}

	if existing, err := s.repo.FindByTriple(ctx, ownerID, item.PartID, item.Color); err == nil && existing.ID != item.ID {
		return ItemDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "an item with this part and color already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate item")
	}

	if err := s.repo.Save(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "uniq_inventory_items_user_part_color") {
			return ItemDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "an item with this part and color already exists")
		}
		return ItemDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
	}
	return FromModel(item), nil
}

func (s *service) Delete(ctx context.Context, viewerID, ownerID uuid.UUID, id int64) error {
	resolved, err := s.guard.ResolveOwner(ctx, viewerID, ownerID)
	if err != nil {
		return err
	}
	if resolved != viewerID {
		allowed, err := s.guard.CanDelete(ctx, viewerID, resolved)
		if err != nil {
			return err
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delete permission required")
		}
	}

	deleted, err := s.repo.Delete(ctx, resolved, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory item")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	return nil
}

func (s *service) WipeAll(ctx context.Context, viewerID uuid.UUID) (int64, error) {
	if viewerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	count, err := s.repo.DeleteAll(ctx, viewerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wipe inventory")
	}
	return count, nil
}

func (s *service) CheckDuplicate(ctx context.Context, viewerID uuid.UUID, req CheckDuplicateRequest) (bool, error) {
	ownerID, err := s.guard.ResolveOwner(ctx, viewerID, req.OwnerID)
	if err != nil {
		return false, err
	}
	partID := strings.TrimSpace(req.PartID)
	if partID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "part_id is required")
	}

	_, err = s.repo.FindByTriple(ctx, ownerID, partID, sanitize.Text(req.Color))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate item")
	}
	return true, nil
}

// requireEdit resolves the effective owner and enforces the edit flag for
// collaborators. The guard answers NOT_FOUND for unknown pairs, so only a
// known collaborator can ever see FORBIDDEN.
func (s *service) requireEdit(ctx context.Context, viewerID, requestedOwnerID uuid.UUID) (uuid.UUID, error) {
	ownerID, err := s.guard.ResolveOwner(ctx, viewerID, requestedOwnerID)
	if err != nil {
		return uuid.Nil, err
	}
	if ownerID != viewerID {
		allowed, err := s.guard.CanEdit(ctx, viewerID, ownerID)
		if err != nil {
			return uuid.Nil, err
		}
		if !allowed {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "edit permission required")
		}
	}
	return ownerID, nil
}

func validateQuantities(total, used int) error {
	if total < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_total cannot be negative").
			WithDetails(map[string]string{"quantity_total": "cannot be negative"})
	}
	if used < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_used cannot be negative").
			WithDetails(map[string]string{"quantity_used": "cannot be negative"})
	}
	if used > total {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_used cannot exceed quantity_total").
			WithDetails(map[string]string{"quantity_used": "cannot exceed quantity_total"})
	}
	return nil
}

// viewerPerPage resolves the page size from the viewer's preference, then
// the effective site config.
func (s *service) viewerPerPage(ctx context.Context, viewerID uuid.UUID) int {
	if pref, err := s.prefs.GetPreference(ctx, viewerID); err == nil && pref.ItemsPerPage > 0 {
		return pref.ItemsPerPage
	}
	return s.sitePerPage(ctx)
}

func (s *service) sitePerPage(ctx context.Context) int {
	if eff, err := s.siteCfg.Effective(ctx); err == nil && eff.ItemsPerPage > 0 {
		return eff.ItemsPerPage
	}
	return pagination.DefaultPerPage
}
