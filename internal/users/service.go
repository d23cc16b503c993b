package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DarkSmileee/BlockShelf/internal/appconfig"
	pkgauth "github.com/DarkSmileee/BlockShelf/pkg/auth"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the account behavior needed by the auth and settings
// controllers.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Get(ctx context.Context, id uuid.UUID) (UserDTO, error)
	GetPreference(ctx context.Context, userID uuid.UUID) (PreferenceDTO, error)
	UpdatePreference(ctx context.Context, userID uuid.UUID, input UpdatePreferenceInput) (PreferenceDTO, error)
}

type registrationGate interface {
	Effective(ctx context.Context) (appconfig.Effective, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies required to build the users service.
// DB is satisfied by *db.Client.
type ServiceParams struct {
	DB             txRunner
	Repo           *Repository
	AppConfig      registrationGate
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	db          txRunner
	repo        *Repository
	appConfig   registrationGate
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewService validates the dependency set and returns a users service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "users db client is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "users repo is required")
	}
	if params.AppConfig == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "users app config is required")
	}
	return &service{
		db:          params.DB,
		repo:        params.Repo,
		appConfig:   params.AppConfig,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	eff, err := s.appConfig.Effective(ctx)
	if err != nil {
		return nil, err
	}
	if !eff.AllowRegistration {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "registration is disabled")
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email are required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		if _, err := repo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
		}
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
		}

		created, err := repo.Create(ctx, CreateUserDTO{
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}

		if err := repo.CreatePreference(ctx, &models.UserPreference{UserID: created.ID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user preference")
		}

		user = created
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return s.issueToken(ctx, user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}

	user, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	return s.issueToken(ctx, user)
}

func (s *service) issueToken(ctx context.Context, user *models.User) (*LoginResponse, error) {
	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		IsStaff:  user.IsStaff,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{
		AccessToken: accessToken,
		User:        FromModel(user),
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return UserDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) GetPreference(ctx context.Context, userID uuid.UUID) (PreferenceDTO, error) {
	pref, err := s.loadOrCreatePreference(ctx, userID)
	if err != nil {
		return PreferenceDTO{}, err
	}
	return preferenceDTO(pref), nil
}

func (s *service) UpdatePreference(ctx context.Context, userID uuid.UUID, input UpdatePreferenceInput) (PreferenceDTO, error) {
	pref, err := s.loadOrCreatePreference(ctx, userID)
	if err != nil {
		return PreferenceDTO{}, err
	}

	if input.ItemsPerPage != nil && *input.ItemsPerPage > 0 {
		pref.ItemsPerPage = *input.ItemsPerPage
	}
	if input.RebrickableAPIKey != nil {
		key := strings.TrimSpace(*input.RebrickableAPIKey)
		if key == "" {
			pref.RebrickableAPIKey = nil
		} else {
			pref.RebrickableAPIKey = &key
		}
	}

	if err := s.repo.SavePreference(ctx, pref); err != nil {
		return PreferenceDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preference")
	}
	return preferenceDTO(pref), nil
}

// loadOrCreatePreference backfills the settings row for accounts that
// predate automatic creation.
func (s *service) loadOrCreatePreference(ctx context.Context, userID uuid.UUID) (*models.UserPreference, error) {
	pref, err := s.repo.GetPreference(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preference")
	}

	fresh := &models.UserPreference{UserID: userID}
	if createErr := s.repo.CreatePreference(ctx, fresh); createErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create preference")
	}
	return fresh, nil
}

func preferenceDTO(pref *models.UserPreference) PreferenceDTO {
	dto := PreferenceDTO{ItemsPerPage: pref.ItemsPerPage}
	if pref.RebrickableAPIKey != nil && *pref.RebrickableAPIKey != "" {
		dto.HasRebrickableKey = true
		dto.RebrickableKeyHint = maskKey(*pref.RebrickableAPIKey)
	}
	return dto
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
