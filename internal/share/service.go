package share

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const shareTokenBytes = 32

// Service is the public share-link gate.
type Service interface {
	// CreateOrRefresh rotates the user's single active link.
	CreateOrRefresh(ctx context.Context, userID uuid.UUID, req CreateShareRequest) (ShareDTO, error)
	// GetActive returns the user's current link.
	GetActive(ctx context.Context, userID uuid.UUID) (ShareDTO, error)
	// Revoke seals the user's active link.
	Revoke(ctx context.Context, userID uuid.UUID) error
	// Resolve evaluates a public token. Expiry is discovered and sealed
	// here, not merely reported.
	Resolve(ctx context.Context, token string) (ResolvedShare, error)
	// RecordAccess is called after Resolve succeeds and before content is
	// served.
	RecordAccess(ctx context.Context, shareID uuid.UUID) error
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo *Repository
}

type service struct {
	repo *Repository
}

// NewService validates the dependency set and returns the share gate.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "share repo is required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) CreateOrRefresh(ctx context.Context, userID uuid.UUID, req CreateShareRequest) (ShareDTO, error) {
	token, err := security.GenerateToken(shareTokenBytes)
	if err != nil {
		return ShareDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate share token")
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if req.ExpiresInDays != nil && *req.ExpiresInDays > 0 {
		t := now.AddDate(0, 0, *req.ExpiresInDays)
		expiresAt = &t
	}

	if err := s.repo.UpsertActive(ctx, userID, token, now, expiresAt, req.MaxAccessCount); err != nil {
		return ShareDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert share link")
	}

	share, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return ShareDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload share link")
	}
	return FromModel(share), nil
}

func (s *service) GetActive(ctx context.Context, userID uuid.UUID) (ShareDTO, error) {
	share, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ShareDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "no active share link")
		}
		return ShareDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load share link")
	}
	return FromModel(share), nil
}

func (s *service) Revoke(ctx context.Context, userID uuid.UUID) error {
	share, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active share link")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load share link")
	}
	if _, err := s.repo.Seal(ctx, share.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke share link")
	}
	return nil
}

func (s *service) Resolve(ctx context.Context, token string) (ResolvedShare, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ResolvedShare{}, pkgerrors.New(pkgerrors.CodeNotFound, "share link not found")
	}

	share, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ResolvedShare{}, pkgerrors.New(pkgerrors.CodeNotFound, "share link not found")
		}
		return ResolvedShare{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load share link")
	}

	now := time.Now().UTC()
	if share.Expired(now) {
		if share.IsActive {
			// seal the discovered expiry before reporting it
			if _, err := s.repo.Seal(ctx, share.ID, now); err != nil {
				return ResolvedShare{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seal expired share")
			}
		}
		return ResolvedShare{}, pkgerrors.New(pkgerrors.CodeGone, "share link has expired")
	}

	return ResolvedShare{OwnerID: share.UserID, Share: share}, nil
}

func (s *service) RecordAccess(ctx context.Context, shareID uuid.UUID) error {
	if err := s.repo.RecordAccess(ctx, shareID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record share access")
	}
	return nil
}
