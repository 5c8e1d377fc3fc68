package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/actedhq/acted-backend/pkg/logger"
)

type fakeAuditRepo struct {
	countRows   int64
	deletedRows int64
	err         error

	lastCutoff   time.Time
	countCalls   int
	deleteCalls  int
}

func (f *fakeAuditRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.countCalls++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.countRows, nil
}

func (f *fakeAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteCalls++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func newAuditRetentionJob(t *testing.T, repo *fakeAuditRepo, retentionDays int, dryRun bool) *AuditRetentionJob {
	t.Helper()
	job, err := NewAuditRetentionJob(AuditRetentionJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Repository:    repo,
		RetentionDays: retentionDays,
		DryRun:        dryRun,
	})
	if err != nil {
		t.Fatalf("NewAuditRetentionJob: %v", err)
	}
	return job
}

func TestAuditRetentionJobDeletesPastCutoff(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeAuditRepo{deletedRows: 17}
	job := newAuditRetentionJob(t, repo, 730, false)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-730 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.deleteCalls != 1 || repo.countCalls != 0 {
		t.Fatalf("expected one delete and no counts, got %d/%d", repo.deleteCalls, repo.countCalls)
	}
}

func TestAuditRetentionJobDryRunOnlyCounts(t *testing.T) {
	repo := &fakeAuditRepo{countRows: 99}
	job := newAuditRetentionJob(t, repo, 0, true)

	report, err := job.Execute(context.Background(), true)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if repo.deleteCalls != 0 {
		t.Fatalf("dry run must not delete, got %d delete calls", repo.deleteCalls)
	}
	if report.RowsAffected != 99 {
		t.Fatalf("expected 99 rows reported, got %d", report.RowsAffected)
	}
	if !report.DryRun {
		t.Fatal("expected dry_run report")
	}
	if report.RetentionDays != defaultAuditRetentionDays {
		t.Fatalf("expected default retention, got %d", report.RetentionDays)
	}
}

func TestAuditRetentionJobPropagatesErrors(t *testing.T) {
	repo := &fakeAuditRepo{err: errors.New("boom")}
	job := newAuditRetentionJob(t, repo, 30, false)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
