package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

const purgeRetentionDays = 30

// revokedPurger hard-deletes revoked rows sealed before the cutoff.
type revokedPurger interface {
	PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeRevokedJobParams configure the purge job.
type PurgeRevokedJobParams struct {
	Logger    *logger.Logger
	Collabs   revokedPurger
	Shares    revokedPurger
	Retention int
}

// NewPurgeRevokedJob builds the job that clears long-revoked collaboration
// invites and share links. Active rows are never touched; the repos only
// delete is_active=false rows older than the cutoff.
func NewPurgeRevokedJob(params PurgeRevokedJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Collabs == nil {
		return nil, fmt.Errorf("collab repository required")
	}
	if params.Shares == nil {
		return nil, fmt.Errorf("share repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = purgeRetentionDays
	}
	return &purgeRevokedJob{
		logg:      params.Logger,
		collabs:   params.Collabs,
		shares:    params.Shares,
		retention: retention,
		now:       time.Now,
	}, nil
}

type purgeRevokedJob struct {
	logg      *logger.Logger
	collabs   revokedPurger
	shares    revokedPurger
	retention int
	now       func() time.Time
}

func (j *purgeRevokedJob) Name() string { return "purge-revoked" }

func (j *purgeRevokedJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	collabs, err := j.collabs.PurgeRevokedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge revoked collaborations: %w", err)
	}
	shares, err := j.shares.PurgeRevokedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge revoked shares: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"retention_days":  j.retention,
		"collabs_deleted": collabs,
		"shares_deleted":  shares,
	})
	j.logg.Info(logCtx, "revoked record purge complete")
	return nil
}
