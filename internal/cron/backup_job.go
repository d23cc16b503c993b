package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/internal/backup"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

// backupRunner is the slice of the backup service the sweep needs.
type backupRunner interface {
	CreateUserBackup(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (backup.BackupDTO, error)
	PruneScheduled(ctx context.Context, userID uuid.UUID) (int, error)
}

type userSource interface {
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ScheduledBackupJobParams configure the backup sweep.
type ScheduledBackupJobParams struct {
	Logger  *logger.Logger
	Backups backupRunner
	Users   userSource
}

// NewScheduledBackupJob builds the job that dumps every active user's
// inventory and prunes dumps beyond the retention count. One user's
// failure does not stop the sweep.
func NewScheduledBackupJob(params ScheduledBackupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backups == nil {
		return nil, fmt.Errorf("backup service required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user source required")
	}
	return &scheduledBackupJob{
		logg:    params.Logger,
		backups: params.Backups,
		users:   params.Users,
	}, nil
}

type scheduledBackupJob struct {
	logg    *logger.Logger
	backups backupRunner
	users   userSource
}

func (j *scheduledBackupJob) Name() string { return "scheduled-backups" }

func (j *scheduledBackupJob) Run(ctx context.Context) error {
	ids, err := j.users.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users for backup: %w", err)
	}

	created, pruned, failed := 0, 0, 0
	for _, userID := range ids {
		if _, err := j.backups.CreateUserBackup(ctx, userID, nil, true); err != nil {
			failed++
			userCtx := j.logg.WithUserID(ctx, userID.String())
			j.logg.Error(userCtx, "scheduled backup failed", err)
			continue
		}
		created++
		dropped, err := j.backups.PruneScheduled(ctx, userID)
		if err != nil {
			userCtx := j.logg.WithUserID(ctx, userID.String())
			j.logg.Error(userCtx, "backup retention prune failed", err)
			continue
		}
		pruned += dropped
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users":   len(ids),
		"created": created,
		"pruned":  pruned,
		"failed":  failed,
	})
	j.logg.Info(logCtx, "scheduled backup sweep complete")
	if failed > 0 && created == 0 && len(ids) > 0 {
		return fmt.Errorf("all %d scheduled backups failed", failed)
	}
	return nil
}
