package collab

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const inviteTokenBytes = 32

// Service drives the collaboration lifecycle and answers the access
// questions every inventory mutation asks first.
type Service interface {
	CreateInvite(ctx context.Context, ownerID uuid.UUID, req CreateInviteRequest) (CollabDTO, error)
	AcceptInvite(ctx context.Context, token string, acceptorID uuid.UUID) (CollabDTO, error)
	UpdatePermissions(ctx context.Context, ownerID, id uuid.UUID, req UpdatePermissionsRequest) (CollabDTO, error)
	Revoke(ctx context.Context, ownerID, id uuid.UUID) error
	Purge(ctx context.Context, ownerID, id uuid.UUID) error
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]CollabDTO, error)
	ListSharedWith(ctx context.Context, collaboratorID uuid.UUID) ([]SharedInventoryDTO, error)

	// Guard reads, side-effect free.
	ResolveOwner(ctx context.Context, viewerID, requestedOwnerID uuid.UUID) (uuid.UUID, error)
	CanEdit(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error)
	CanDelete(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies for NewService. DB is satisfied
// by *db.Client.
type ServiceParams struct {
	DB    txRunner
	Repo  *Repository
	Users userLookup
}

type service struct {
	db    txRunner
	repo  *Repository
	users userLookup
}

// NewService validates the dependency set and returns a collab service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collab db client is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collab repo is required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collab user lookup is required")
	}
	return &service{db: params.DB, repo: params.Repo, users: params.Users}, nil
}

func (s *service) CreateInvite(ctx context.Context, ownerID uuid.UUID, req CreateInviteRequest) (CollabDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return CollabDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inviting user")
	}
	if strings.EqualFold(owner.Email, email) {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "you cannot invite yourself")
	}

	token, err := security.GenerateToken(inviteTokenBytes)
	if err != nil {
		return CollabDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite token")
	}

	collab := &models.InventoryCollab{
		OwnerID:      ownerID,
		InvitedEmail: email,
		Token:        token,
		CanEdit:      req.CanEdit,
		CanDelete:    req.CanDelete,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, collab); err != nil {
		return CollabDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invite")
	}
	return FromModel(collab), nil
}

func (s *service) AcceptInvite(ctx context.Context, token string, acceptorID uuid.UUID) (CollabDTO, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "invite not found")
	}

	invite, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CollabDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "invite not found")
		}
		return CollabDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invite")
	}

	if invite.OwnerID == acceptorID {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "you cannot accept your own invite")
	}

	switch invite.Status() {
	case models.CollabStatusRevoked:
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "invite is no longer valid")
	case models.CollabStatusActive:
		if invite.CollaboratorID != nil && *invite.CollaboratorID == acceptorID {
			return FromModel(invite), nil
		}
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "invite has already been used")
	}

	now := time.Now().UTC()
	var result *models.InventoryCollab

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		existing, err := repo.FindActivePair(ctx, invite.OwnerID, acceptorID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing collaboration")
		}

		if existing != nil {
			// The new invite replaces the existing grant's permissions
			// outright, then retires itself.
			ok, err := repo.UpdatePermissions(ctx, invite.OwnerID, existing.ID, invite.CanEdit, invite.CanDelete)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update existing collaboration")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "collaboration changed, retry")
			}
			if _, err := repo.Revoke(ctx, invite.OwnerID, invite.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire invite")
			}
			existing.CanEdit = invite.CanEdit
			existing.CanDelete = invite.CanDelete
			result = existing
			return nil
		}

		ok, err := repo.Accept(ctx, invite.ID, acceptorID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept invite")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invite is no longer valid")
		}
		invite.CollaboratorID = &acceptorID
		invite.AcceptedAt = &now
		result = invite
		return nil
	})
	if txErr != nil {
		return CollabDTO{}, txErr
	}
	return FromModel(result), nil
}

func (s *service) UpdatePermissions(ctx context.Context, ownerID, id uuid.UUID, req UpdatePermissionsRequest) (CollabDTO, error) {
	collab, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return CollabDTO{}, err
	}
	if collab.Status() == models.CollabStatusRevoked {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "collaboration has been revoked")
	}

	ok, err := s.repo.UpdatePermissions(ctx, ownerID, id, req.CanEdit, req.CanDelete)
	if err != nil {
		return CollabDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update permissions")
	}
	if !ok {
		return CollabDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "collaboration has been revoked")
	}
	collab.CanEdit = req.CanEdit
	collab.CanDelete = req.CanDelete
	return FromModel(collab), nil
}

func (s *service) Revoke(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.loadOwned(ctx, ownerID, id); err != nil {
		return err
	}
	// Zero rows affected means it was already revoked; the seal stands.
	if _, err := s.repo.Revoke(ctx, ownerID, id, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke collaboration")
	}
	return nil
}

func (s *service) Purge(ctx context.Context, ownerID, id uuid.UUID) error {
	collab, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if collab.IsActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "revoke the collaboration before deleting it")
	}
	ok, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete collaboration")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "collaboration not found")
	}
	return nil
}

func (s *service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]CollabDTO, error) {
	rows, err := s.repo.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collaborations")
	}
	dtos := make([]CollabDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, FromModel(&rows[i]))
	}
	return dtos, nil
}

func (s *service) ListSharedWith(ctx context.Context, collaboratorID uuid.UUID) ([]SharedInventoryDTO, error) {
	rows, err := s.repo.ListAcceptedForCollaborator(ctx, collaboratorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shared inventories")
	}
	dtos := make([]SharedInventoryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, SharedInventoryDTO{
			OwnerID:       row.OwnerID,
			OwnerUsername: row.OwnerUsername,
			CanEdit:       row.CanEdit,
			CanDelete:     row.CanDelete,
		})
	}
	return dtos, nil
}

// ResolveOwner maps a viewer plus an optional requested owner onto the
// inventory the request operates on. Absence of a grant reads the same as
// a nonexistent owner.
func (s *service) ResolveOwner(ctx context.Context, viewerID, requestedOwnerID uuid.UUID) (uuid.UUID, error) {
	if requestedOwnerID == uuid.Nil || requestedOwnerID == viewerID {
		return viewerID, nil
	}
	_, err := s.repo.FindActivePair(ctx, requestedOwnerID, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve owner")
	}
	return requestedOwnerID, nil
}

func (s *service) CanEdit(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error) {
	return s.hasPermission(ctx, viewerID, ownerID, func(c *models.InventoryCollab) bool { return c.CanEdit })
}

func (s *service) CanDelete(ctx context.Context, viewerID, ownerID uuid.UUID) (bool, error) {
	return s.hasPermission(ctx, viewerID, ownerID, func(c *models.InventoryCollab) bool { return c.CanDelete })
}

func (s *service) hasPermission(ctx context.Context, viewerID, ownerID uuid.UUID, flag func(*models.InventoryCollab) bool) (bool, error) {
	if viewerID == ownerID {
		return true, nil
	}
	collab, err := s.repo.FindActivePair(ctx, ownerID, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check permission")
	}
	return flag(collab), nil
}

func (s *service) loadOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.InventoryCollab, error) {
	collab, err := s.repo.FindForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collaboration not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collaboration")
	}
	return collab, nil
}
