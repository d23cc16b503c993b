package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// BackupDTO is the API shape of one backup record.
type BackupDTO struct {
	ID          uuid.UUID  `json:"id"`
	BackupType  string     `json:"backup_type"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	FilePath    string     `json:"file_path"`
	FileSize    int64      `json:"file_size"`
	IsScheduled bool       `json:"is_scheduled"`
	CreatedAt   time.Time  `json:"created_at"`
}

func fromModel(backup *models.Backup) BackupDTO {
	return BackupDTO{
		ID:          backup.ID,
		BackupType:  backup.BackupType,
		UserID:      backup.UserID,
		FilePath:    backup.FilePath,
		FileSize:    backup.FileSize,
		IsScheduled: backup.IsScheduled,
		CreatedAt:   backup.CreatedAt,
	}
}

// itemSource provides the rows a user dump serializes.
type itemSource interface {
	ListAll(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error)
}

// Service writes inventory dumps and manages their metadata records. The
// dump format is a plain JSON array of the user's items.
type Service interface {
	CreateUserBackup(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (BackupDTO, error)
	// List shows every record to staff and only the caller's own records
	// otherwise.
	List(ctx context.Context, viewerID uuid.UUID, isStaff bool) ([]BackupDTO, error)
	Delete(ctx context.Context, viewerID uuid.UUID, isStaff bool, id uuid.UUID) error
	// PruneScheduled drops a user's oldest scheduled dumps beyond the
	// configured retention count.
	PruneScheduled(ctx context.Context, userID uuid.UUID) (int, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo   *Repository
	Items  itemSource
	Config config.BackupConfig
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	items  itemSource
	cfg    config.BackupConfig
	logger *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backup repo is required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backup item source is required")
	}
	if params.Config.Dir == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backup directory is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "backup logger is required")
	}
	return &service{
		repo:   params.Repo,
		items:  params.Items,
		cfg:    params.Config,
		logger: params.Logger,
	}, nil
}

func (s *service) CreateUserBackup(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (BackupDTO, error) {
	if userID == uuid.Nil {
		return BackupDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	items, err := s.items.ListAll(ctx, userID)
	if err != nil {
		return BackupDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory for backup")
	}

	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return BackupDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize backup")
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return BackupDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create backup directory")
	}
	filename := fmt.Sprintf("inventory_%s_%s.json", userID, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(s.cfg.Dir, filename)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return BackupDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write backup file")
	}

	record := models.Backup{
		BackupType:  models.BackupTypeUserInventory,
		UserID:      &userID,
		FilePath:    path,
		FileSize:    int64(len(payload)),
		CreatedBy:   createdBy,
		IsScheduled: scheduled,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		// the dump exists but the record failed; remove the orphan file
		rmErr := os.Remove(path)
		return BackupDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency,
			multierr.Append(err, rmErr), "record backup")
	}
	return fromModel(&record), nil
}

func (s *service) List(ctx context.Context, viewerID uuid.UUID, isStaff bool) ([]BackupDTO, error) {
	var (
		backups []models.Backup
		err     error
	)
	if isStaff {
		backups, err = s.repo.ListAll(ctx)
	} else {
		backups, err = s.repo.ListForUser(ctx, viewerID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list backups")
	}
	dtos := make([]BackupDTO, 0, len(backups))
	for i := range backups {
		dtos = append(dtos, fromModel(&backups[i]))
	}
	return dtos, nil
}

func (s *service) Delete(ctx context.Context, viewerID uuid.UUID, isStaff bool, id uuid.UUID) error {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "backup not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load backup")
	}
	if !isStaff && (record.UserID == nil || *record.UserID != viewerID) {
		// non-staff callers cannot learn about other tenants' backups
		return pkgerrors.New(pkgerrors.CodeNotFound, "backup not found")
	}

	return s.remove(ctx, record)
}

func (s *service) PruneScheduled(ctx context.Context, userID uuid.UUID) (int, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}
	backups, err := s.repo.ListScheduledForUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scheduled backups")
	}
	if len(backups) <= s.cfg.Retention {
		return 0, nil
	}

	pruned := 0
	for i := s.cfg.Retention; i < len(backups); i++ {
		if err := s.remove(ctx, &backups[i]); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// remove deletes the dump file and the record; a missing file is not an
// error, the record is the source of truth.
func (s *service) remove(ctx context.Context, record *models.Backup) error {
	var errs error
	if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
		errs = multierr.Append(errs, err)
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "delete backup")
	}
	return nil
}
