package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/internal/backup"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

type fakeBackupRunner struct {
	failFor map[uuid.UUID]error
	created []uuid.UUID
	pruned  []uuid.UUID
}

func (f *fakeBackupRunner) CreateUserBackup(_ context.Context, userID uuid.UUID, _ *uuid.UUID, scheduled bool) (backup.BackupDTO, error) {
	if err := f.failFor[userID]; err != nil {
		return backup.BackupDTO{}, err
	}
	if !scheduled {
		return backup.BackupDTO{}, errors.New("sweep dumps must be marked scheduled")
	}
	f.created = append(f.created, userID)
	return backup.BackupDTO{ID: uuid.New(), UserID: &userID, IsScheduled: true}, nil
}

func (f *fakeBackupRunner) PruneScheduled(_ context.Context, userID uuid.UUID) (int, error) {
	f.pruned = append(f.pruned, userID)
	return 1, nil
}

type fakeUserSource struct {
	ids []uuid.UUID
	err error
}

func (f fakeUserSource) ListActiveIDs(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

func newBackupJob(t *testing.T, backups *fakeBackupRunner, users fakeUserSource) Job {
	t.Helper()
	job, err := NewScheduledBackupJob(ScheduledBackupJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Backups: backups,
		Users:   users,
	})
	if err != nil {
		t.Fatalf("NewScheduledBackupJob: %v", err)
	}
	return job
}

func TestScheduledBackupJobSweepsAllUsers(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	backups := &fakeBackupRunner{}
	job := newBackupJob(t, backups, fakeUserSource{ids: []uuid.UUID{alice, bob}})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backups.created) != 2 || len(backups.pruned) != 2 {
		t.Fatalf("created %d pruned %d, want 2/2", len(backups.created), len(backups.pruned))
	}
}

func TestScheduledBackupJobToleratesSingleUserFailure(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	backups := &fakeBackupRunner{failFor: map[uuid.UUID]error{alice: errors.New("disk full")}}
	job := newBackupJob(t, backups, fakeUserSource{ids: []uuid.UUID{alice, bob}})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(backups.created) != 1 || backups.created[0] != bob {
		t.Fatalf("expected only bob's dump, got %v", backups.created)
	}
	// the failed user is not pruned
	if len(backups.pruned) != 1 {
		t.Fatalf("expected one prune, got %d", len(backups.pruned))
	}
}

func TestScheduledBackupJobFailsWhenEverythingFails(t *testing.T) {
	alice := uuid.New()
	backups := &fakeBackupRunner{failFor: map[uuid.UUID]error{alice: errors.New("disk full")}}
	job := newBackupJob(t, backups, fakeUserSource{ids: []uuid.UUID{alice}})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when every dump fails")
	}
}

func TestScheduledBackupJobPropagatesUserListError(t *testing.T) {
	job := newBackupJob(t, &fakeBackupRunner{}, fakeUserSource{err: errors.New("db down")})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
