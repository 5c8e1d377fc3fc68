package rules

import (
	"context"
	"sort"
	"sync"

	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
)

// Registry serves ordered rule lists per entry point from an in-process
// cache. The cache is read-mostly; admin writes call Invalidate and the next
// read rebuilds from storage. Rebuilds are last-writer-wins and always safe.
type Registry struct {
	repo *Repository

	mu    sync.RWMutex
	cache map[string][]models.VATRuleDefinition
}

// NewRegistry builds a registry over the rule repository.
func NewRegistry(repo *Repository) (*Registry, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rule repo is required")
	}
	return &Registry{
		repo:  repo,
		cache: map[string][]models.VATRuleDefinition{},
	}, nil
}

// RulesFor returns the active rules for an entry point, lowest numeric
// priority first, reduced to the latest version per rule code.
func (r *Registry) RulesFor(ctx context.Context, entryPoint string) ([]models.VATRuleDefinition, error) {
	r.mu.RLock()
	cached, ok := r.cache[entryPoint]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rows, err := r.repo.ListActiveByEntryPoint(ctx, entryPoint)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rules")
	}
	reduced := latestVersionPerCode(rows)

	r.mu.Lock()
	r.cache[entryPoint] = reduced
	r.mu.Unlock()
	return reduced, nil
}

// Invalidate drops the cached rule list for one entry point.
func (r *Registry) Invalidate(entryPoint string) {
	r.mu.Lock()
	delete(r.cache, entryPoint)
	r.mu.Unlock()
}

// InvalidateAll drops every cached rule list.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = map[string][]models.VATRuleDefinition{}
	r.mu.Unlock()
}

// latestVersionPerCode reduces the rows to the newest active version per
// rule code, then restores priority order. Versions may move a rule's
// priority, so the reduction runs before the sort.
func latestVersionPerCode(rows []models.VATRuleDefinition) []models.VATRuleDefinition {
	newest := map[string]models.VATRuleDefinition{}
	for _, row := range rows {
		if best, ok := newest[row.RuleCode]; !ok || row.Version > best.Version {
			newest[row.RuleCode] = row
		}
	}
	out := make([]models.VATRuleDefinition, 0, len(newest))
	for _, row := range newest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].RuleCode < out[j].RuleCode
	})
	return out
}
