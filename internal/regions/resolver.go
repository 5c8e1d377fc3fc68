package regions

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/enums"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
)

// ErrRegionNotFound indicates no mapping covers the country at the given date.
// Callers recover by defaulting to ROW.
var ErrRegionNotFound = errors.New("vat region not found")

// Resolver maps an ISO country code to a VAT region at a point in time.
type Resolver struct {
	repo *Repository
}

// NewResolver builds a resolver over the mapping repository.
func NewResolver(repo *Repository) (*Resolver, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country region repo is required")
	}
	return &Resolver{repo: repo}, nil
}

// Resolve returns the region containing the country on the effective date.
// ErrRegionNotFound is returned when no active mapping covers the date or the
// country code is blank.
func (r *Resolver) Resolve(ctx context.Context, countryISO string, effectiveDate time.Time) (enums.RegionCode, error) {
	iso := strings.ToUpper(strings.TrimSpace(countryISO))
	if iso == "" {
		return "", ErrRegionNotFound
	}

	row, err := r.repo.FindMapping(ctx, iso, effectiveDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRegionNotFound
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load country region mapping")
	}
	if row.Region == nil {
		return "", ErrRegionNotFound
	}
	return row.Region.Code, nil
}

// ResolveOrDefault resolves the region, falling back to ROW when no mapping
// applies. Unexpected storage errors still propagate.
func (r *Resolver) ResolveOrDefault(ctx context.Context, countryISO string, effectiveDate time.Time) (enums.RegionCode, error) {
	region, err := r.Resolve(ctx, countryISO, effectiveDate)
	if err != nil {
		if errors.Is(err, ErrRegionNotFound) {
			return enums.RegionROW, nil
		}
		return "", err
	}
	return region, nil
}
