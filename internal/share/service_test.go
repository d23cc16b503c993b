package share

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupShareTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS inventory_shares (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  token TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  expires_at DATETIME,
  revoked_at DATETIME,
  access_count INTEGER NOT NULL DEFAULT 0,
  last_accessed_at DATETIME,
  max_access_count INTEGER
)`).Error)
	require.NoError(t, db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS uniq_inventory_shares_active_user
  ON inventory_shares (user_id) WHERE is_active`).Error)
	return db
}

func newShareService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)
	return svc
}

func TestCreateOrRefreshRotatesSingleRow(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	first, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)

	second, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	if second.Token == first.Token {
		t.Fatal("expected token rotation")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same row to be reused, got %s vs %s", second.ID, first.ID)
	}

	var count int64
	require.NoError(t, db.Model(&models.InventoryShare{}).Where("user_id = ?", user).Count(&count).Error)
	if count != 1 {
		t.Fatalf("expected exactly one share row, got %d", count)
	}

	// the old token resolves to nothing
	_, err = svc.Resolve(context.Background(), first.Token)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for rotated-out token, got %v", err)
	}
}

func TestRefreshResetsCounters(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	first, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.RecordAccess(context.Background(), first.ID))

	refreshed, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	if refreshed.AccessCount != 0 {
		t.Fatalf("expected counter reset on refresh, got %d", refreshed.AccessCount)
	}
}

func TestResolveAndRecordAccess(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	created, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), created.Token)
	require.NoError(t, err)
	require.Equal(t, user, resolved.OwnerID)

	require.NoError(t, svc.RecordAccess(context.Background(), resolved.Share.ID))

	active, err := svc.GetActive(context.Background(), user)
	require.NoError(t, err)
	if active.AccessCount != 1 || active.LastAccessedAt == nil {
		t.Fatalf("expected recorded access, got %+v", active)
	}
}

func TestRecordAccessIsAtomicUnderConcurrency(t *testing.T) {
	db := setupShareTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	svc := newShareService(t, db)
	user := uuid.New()

	created, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)

	const viewers = 10
	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.RecordAccess(context.Background(), created.ID)
		}()
	}
	wg.Wait()

	active, err := svc.GetActive(context.Background(), user)
	require.NoError(t, err)
	if active.AccessCount != viewers {
		t.Fatalf("expected %d accesses, got %d", viewers, active.AccessCount)
	}
}

func TestMaxAccessCountSealsOnDiscovery(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	one := int64(1)
	created, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{MaxAccessCount: &one})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), created.Token)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAccess(context.Background(), resolved.Share.ID))

	_, err = svc.Resolve(context.Background(), created.Token)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeGone {
		t.Fatalf("expected gone after budget spent, got %v", err)
	}

	var row models.InventoryShare
	require.NoError(t, db.First(&row, "id = ?", created.ID).Error)
	if row.IsActive || row.RevokedAt == nil {
		t.Fatalf("expected discovered expiry to seal the row, got %+v", row)
	}
}

func TestExpiryTimestampSealsOnDiscovery(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	created, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.InventoryShare{}).
		Where("id = ?", created.ID).
		UpdateColumn("expires_at", past).Error)

	_, err = svc.Resolve(context.Background(), created.Token)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeGone {
		t.Fatalf("expected gone for past expiry, got %v", err)
	}

	var row models.InventoryShare
	require.NoError(t, db.First(&row, "id = ?", created.ID).Error)
	if row.IsActive {
		t.Fatal("expected expired share to be sealed")
	}
}

func TestRevokeThenResolveIsGone(t *testing.T) {
	db := setupShareTestDB(t)
	svc := newShareService(t, db)
	user := uuid.New()

	created, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), user))

	_, err = svc.Resolve(context.Background(), created.Token)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeGone {
		t.Fatalf("expected gone for revoked link, got %v", err)
	}

	if _, err := svc.GetActive(context.Background(), user); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected no active link after revoke, got %v", err)
	}

	// a new link can be created afterwards
	again, err := svc.CreateOrRefresh(context.Background(), user, CreateShareRequest{})
	require.NoError(t, err)
	if again.ID == created.ID {
		t.Fatal("expected a fresh row after revocation")
	}
}
