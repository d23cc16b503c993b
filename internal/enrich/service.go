package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/internal/lookup"
	"github.com/DarkSmileee/BlockShelf/pkg/config"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

const (
	maxBatchSize = 500
	maxMessages  = 200
)

// Service walks a user's inventory filling in names and images that
// earlier imports left blank or as the "unknown" placeholder.
type Service interface {
	// RunBatch resolves one cursor-sized slice of rows. Callers loop
	// with the returned last_id until done.
	RunBatch(ctx context.Context, userID uuid.UUID, req RunRequest) (RunResult, error)
}

type resolver interface {
	EnrichResolve(ctx context.Context, userID uuid.UUID, token string) (lookup.EnrichOutcome, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo     *Repository
	DB       txRunner
	Resolver resolver
	Config   config.EnrichConfig
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	db       txRunner
	resolver resolver
	cfg      config.EnrichConfig
	logger   *logger.Logger
}

// NewService validates the dependency set.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrich repo is required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrich tx runner is required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrich resolver is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enrich logger is required")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		resolver: params.Resolver,
		cfg:      params.Config,
		logger:   params.Logger,
	}, nil
}

type rowPatch struct {
	id      int64
	updates map[string]any
}

func (s *service) RunBatch(ctx context.Context, userID uuid.UUID, req RunRequest) (RunResult, error) {
	if userID == uuid.Nil {
		return RunResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	batchSize := s.clampBatch(req.BatchSize)

	rows, err := s.repo.ListCandidates(ctx, userID, req.AfterID, batchSize)
	if err != nil {
		return RunResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrichment candidates")
	}

	result := RunResult{Done: len(rows) < batchSize, LastID: req.AfterID}
	var patches []rowPatch

	// resolution happens outside the transaction; only the field patches
	// run inside it
	for _, item := range rows {
		result.LastID = item.ID
		result.Processed++

		needName := strings.EqualFold(strings.TrimSpace(item.Name), "unknown") || strings.TrimSpace(item.Name) == ""
		needImage := item.ImageURL == ""
		if !needName && !needImage {
			result.Skipped++
			continue
		}

		token := strings.TrimSpace(item.PartID)
		if len(strings.Fields(token)) != 1 {
			result.Skipped++
			s.appendMessage(&result, fmt.Sprintf("item %d: part id %q is not a single token", item.ID, item.PartID))
			continue
		}

		outcome, err := s.resolver.EnrichResolve(ctx, userID, token)
		if err != nil {
			result.Skipped++
			s.appendMessage(&result, fmt.Sprintf("item %d: %v", item.ID, err))
			s.logger.Error(ctx, "enrichment resolve failed", err)
			continue
		}
		result.APICalls += outcome.APICalls

		updates := map[string]any{}
		if needName && outcome.Result.Name != "" {
			updates["name"] = outcome.Result.Name
			result.UpdatedNames++
		}
		if needImage && outcome.Result.ImageURL != "" {
			updates["image_url"] = outcome.Result.ImageURL
			result.UpdatedImages++
		}
		if len(updates) == 0 {
			result.Skipped++
			continue
		}
		patches = append(patches, rowPatch{id: item.ID, updates: updates})
	}

	if len(patches) > 0 {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			for _, patch := range patches {
				if err := s.repo.PatchFields(tx, patch.id, patch.updates); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return RunResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply enrichment batch")
		}
	}

	return result, nil
}

func (s *service) clampBatch(size int) int {
	if size <= 0 {
		size = s.cfg.BatchSize
	}
	if size <= 0 {
		size = 25
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}
	return size
}

func (s *service) appendMessage(result *RunResult, msg string) {
	if len(result.Messages) < maxMessages {
		result.Messages = append(result.Messages, msg)
	}
}
