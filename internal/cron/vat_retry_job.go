package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/actedhq/acted-backend/internal/vat"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

const defaultRetryBatchSize = 100

// VATRetryJobParams configures the retry job for flagged carts.
type VATRetryJobParams struct {
	Logger *logger.Logger
	Carts  flaggedCartSource
	VAT    vatCalculator
	// BatchSize caps the carts retried per run; <=0 uses the default.
	BatchSize int
}

type flaggedCartSource interface {
	ListVATErrorIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type vatCalculator interface {
	CalculateVATForCart(ctx context.Context, cartID uuid.UUID, opts vat.CalculateOptions) (*types.VATResultDoc, error)
}

// NewVATRetryJob builds the job that re-runs VAT calculation for carts left
// flagged by a failed run.
func NewVATRetryJob(params VATRetryJobParams) (*VATRetryJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if params.VAT == nil {
		return nil, fmt.Errorf("vat service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetryBatchSize
	}
	return &VATRetryJob{
		logg:  params.Logger,
		carts: params.Carts,
		vat:   params.VAT,
		batch: batch,
	}, nil
}

// VATRetryJob recalculates VAT for carts whose last run failed. A cart that
// fails again keeps its error flag and is picked up on the next cycle.
type VATRetryJob struct {
	logg  *logger.Logger
	carts flaggedCartSource
	vat   vatCalculator
	batch int
}

func (j *VATRetryJob) Name() string { return "vat-retry" }

func (j *VATRetryJob) Run(ctx context.Context) error {
	ids, err := j.carts.ListVATErrorIDs(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list flagged carts: %w", err)
	}

	var errs []error
	retried := 0
	for _, id := range ids {
		if _, err := j.vat.CalculateVATForCart(ctx, id, vat.CalculateOptions{RaiseOnError: true}); err != nil {
			errs = append(errs, fmt.Errorf("cart %s: %w", id, err))
			continue
		}
		retried++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"flagged":   len(ids),
		"recovered": retried,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "vat retry loop complete")

	return multierr.Combine(errs...)
}
