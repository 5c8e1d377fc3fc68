package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/actedhq/acted-backend/pkg/logger"
)

const defaultAuditRetentionDays = 730

// AuditRetentionJobParams configure the audit retention job.
type AuditRetentionJobParams struct {
	Logger     *logger.Logger
	Repository auditRetentionRepo
	// RetentionDays keeps rows younger than this many days; <=0 uses the default.
	RetentionDays int
	// DryRun reports what would be deleted without deleting.
	DryRun bool
}

type auditRetentionRepo interface {
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionReport summarizes one retention pass.
type RetentionReport struct {
	Cutoff        time.Time `json:"cutoff"`
	RetentionDays int       `json:"retention_days"`
	DryRun        bool      `json:"dry_run"`
	RowsAffected  int64     `json:"rows_affected"`
}

// NewAuditRetentionJob builds the job that prunes aged audit rows. Rows
// created exactly at the cutoff survive; the comparison is strictly older.
func NewAuditRetentionJob(params AuditRetentionJobParams) (*AuditRetentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultAuditRetentionDays
	}
	return &AuditRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		dryRun:    params.DryRun,
		now:       time.Now,
	}, nil
}

// AuditRetentionJob prunes rule execution audit rows past their retention.
type AuditRetentionJob struct {
	logg      *logger.Logger
	repo      auditRetentionRepo
	retention int
	dryRun    bool
	now       func() time.Time
}

func (j *AuditRetentionJob) Name() string { return "audit-retention" }

// Run executes the job with its configured dry-run mode.
func (j *AuditRetentionJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx, j.dryRun)
	return err
}

// Execute runs one retention pass. Admin endpoints call this directly with an
// explicit dry-run choice.
func (j *AuditRetentionJob) Execute(ctx context.Context, dryRun bool) (*RetentionReport, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var affected int64
	var err error
	if dryRun {
		affected, err = j.repo.CountOlderThan(ctx, cutoff)
	} else {
		affected, err = j.repo.DeleteOlderThan(ctx, cutoff)
	}
	if err != nil {
		return nil, fmt.Errorf("audit retention: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"dry_run":        dryRun,
		"rows_affected":  affected,
	})
	j.logg.Info(logCtx, "audit retention pass complete")

	return &RetentionReport{
		Cutoff:        cutoff,
		RetentionDays: j.retention,
		DryRun:        dryRun,
		RowsAffected:  affected,
	}, nil
}
