package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/api/middleware"
	"github.com/DarkSmileee/BlockShelf/internal/backup"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
)

type testBackupService struct {
	createFn func(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (backup.BackupDTO, error)
	listFn   func(ctx context.Context, viewerID uuid.UUID, isStaff bool) ([]backup.BackupDTO, error)
	deleteFn func(ctx context.Context, viewerID uuid.UUID, isStaff bool, id uuid.UUID) error
	pruneFn  func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (s *testBackupService) CreateUserBackup(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (backup.BackupDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, userID, createdBy, scheduled)
	}
	return backup.BackupDTO{}, nil
}

func (s *testBackupService) List(ctx context.Context, viewerID uuid.UUID, isStaff bool) ([]backup.BackupDTO, error) {
	if s.listFn != nil {
		return s.listFn(ctx, viewerID, isStaff)
	}
	return nil, nil
}

func (s *testBackupService) Delete(ctx context.Context, viewerID uuid.UUID, isStaff bool, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, viewerID, isStaff, id)
	}
	return nil
}

func (s *testBackupService) PruneScheduled(ctx context.Context, userID uuid.UUID) (int, error) {
	if s.pruneFn != nil {
		return s.pruneFn(ctx, userID)
	}
	return 0, nil
}

func TestBackupCreateOnDemand(t *testing.T) {
	viewerID := uuid.New()
	svc := &testBackupService{
		createFn: func(ctx context.Context, userID uuid.UUID, createdBy *uuid.UUID, scheduled bool) (backup.BackupDTO, error) {
			if userID != viewerID {
				t.Fatalf("unexpected user %s", userID)
			}
			if createdBy == nil || *createdBy != viewerID {
				t.Fatal("expected creator recorded")
			}
			if scheduled {
				t.Fatal("on-demand backup must not be marked scheduled")
			}
			return backup.BackupDTO{ID: uuid.New()}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/backups", nil, viewerID)
	resp := httptest.NewRecorder()
	BackupCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestBackupsListForwardsStaffFlag(t *testing.T) {
	viewerID := uuid.New()
	svc := &testBackupService{
		listFn: func(ctx context.Context, vid uuid.UUID, isStaff bool) ([]backup.BackupDTO, error) {
			if !isStaff {
				t.Fatal("expected staff flag forwarded")
			}
			return []backup.BackupDTO{{ID: uuid.New()}}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/backups", nil, viewerID)
	req = req.WithContext(middleware.WithStaff(req.Context(), true))
	resp := httptest.NewRecorder()
	BackupsList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestBackupDeleteCrossTenant(t *testing.T) {
	svc := &testBackupService{
		deleteFn: func(ctx context.Context, viewerID uuid.UUID, isStaff bool, id uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "backup not found")
		},
	}

	backupID := uuid.NewString()
	req := authedRequest(http.MethodDelete, "/api/v1/backups/"+backupID, nil, uuid.New())
	req = addRouteParam(req, "backupID", backupID)
	resp := httptest.NewRecorder()
	BackupDelete(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
