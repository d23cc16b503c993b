package users

import (
	"context"
	"strings"
	"testing"

	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	pkgauth "github.com/DarkSmileee/BlockShelf/pkg/auth"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_staff INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS user_preferences (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  items_per_page INTEGER NOT NULL DEFAULT 25,
  rebrickable_api_key TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGate struct {
	allow bool
}

func (g stubGate) Effective(context.Context) (appconfig.Effective, error) {
	return appconfig.Effective{AllowRegistration: g.allow, ItemsPerPage: 25}, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "unit-test-secret-0123456789abcdef",
		Issuer:            "blockshelf-test",
		ExpirationMinutes: 15,
	}
}

func newUsersService(t *testing.T, db *gorm.DB, allowRegistration bool) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:        gormTxRunner{db: db},
		Repo:      NewRepository(db),
		AppConfig: stubGate{allow: allowRegistration},
		JWTConfig: testJWTConfig(),
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	if err == nil {
		t.Fatal("expected error creating service without deps")
	}
}

func TestRegisterCreatesUserAndPreference(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "BrickFan@Example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	if resp.User.Email != "brickfan@example.com" {
		t.Fatalf("expected lowercased email, got %q", resp.User.Email)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	require.NoError(t, err)
	if claims.UserID != resp.User.ID || claims.Username != "brickfan" || claims.IsStaff {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	var pref models.UserPreference
	require.NoError(t, db.Where("user_id = ?", resp.User.ID).First(&pref).Error)
	if pref.ItemsPerPage != 25 {
		t.Fatalf("expected default items per page, got %d", pref.ItemsPerPage)
	}
}

func TestRegisterBlockedWhenRegistrationDisabled(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, false)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "other@example.com",
		Password: "hunter2hunter2",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on username, got %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "otherfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on email, got %v", err)
	}

	// nothing partial left behind by the rejected attempts
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	if count != 1 {
		t.Fatalf("expected a single user, got %d", count)
	}
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	byName, err := svc.Login(context.Background(), LoginRequest{Login: "brickfan", Password: "hunter2hunter2"})
	require.NoError(t, err)
	if byName.User.LastLoginAt == nil {
		t.Fatal("expected last_login_at to be set")
	}

	byEmail, err := svc.Login(context.Background(), LoginRequest{Login: "BrickFan@Example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	if byEmail.User.ID != byName.User.ID {
		t.Fatal("expected same account for username and email login")
	}
}

func TestLoginRejectsBadPasswordAndInactive(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Login: "brickfan", Password: "wrong"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", resp.User.ID).UpdateColumn("is_active", false).Error)
	_, err = svc.Login(context.Background(), LoginRequest{Login: "brickfan", Password: "hunter2hunter2"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive account, got %v", err)
	}
}

func TestUpdatePreferenceMasksAndClearsKey(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "brickfan",
		Email:    "brickfan@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	perPage := 100
	key := "rbk-0123456789"
	pref, err := svc.UpdatePreference(context.Background(), resp.User.ID, UpdatePreferenceInput{
		ItemsPerPage:      &perPage,
		RebrickableAPIKey: &key,
	})
	require.NoError(t, err)
	if pref.ItemsPerPage != 100 {
		t.Fatalf("expected items per page 100, got %d", pref.ItemsPerPage)
	}
	if !pref.HasRebrickableKey {
		t.Fatal("expected key to be stored")
	}
	if !strings.HasSuffix(pref.RebrickableKeyHint, "6789") || strings.Contains(pref.RebrickableKeyHint, "rbk") {
		t.Fatalf("unexpected key hint %q", pref.RebrickableKeyHint)
	}

	empty := ""
	pref, err = svc.UpdatePreference(context.Background(), resp.User.ID, UpdatePreferenceInput{
		RebrickableAPIKey: &empty,
	})
	require.NoError(t, err)
	if pref.HasRebrickableKey {
		t.Fatal("expected key to be cleared")
	}
	if pref.ItemsPerPage != 100 {
		t.Fatalf("expected items per page preserved, got %d", pref.ItemsPerPage)
	}
}

func TestGetPreferenceBackfillsMissingRow(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	userID := uuid.New()
	require.NoError(t, db.Create(&models.User{
		ID:           userID,
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}).Error)

	pref, err := svc.GetPreference(context.Background(), userID)
	require.NoError(t, err)
	if pref.ItemsPerPage != 25 {
		t.Fatalf("expected default items per page, got %d", pref.ItemsPerPage)
	}

	var row models.UserPreference
	require.NoError(t, db.Where("user_id = ?", userID).First(&row).Error)
}

func TestGetUnknownUserIsNotFound(t *testing.T) {
	db := setupUsersTestDB(t)
	svc := newUsersService(t, db, true)

	_, err := svc.Get(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
