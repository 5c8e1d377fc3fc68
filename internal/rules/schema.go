package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gorm.io/gorm"

	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
)

// ErrSchemaValidation wraps a context document failing its declared schema.
var ErrSchemaValidation = errors.New("context schema validation failed")

// SchemaValidator compiles rule context schemas on first use and caches the
// compiled form. Admin schema writes call Invalidate; the next validation
// recompiles from storage.
type SchemaValidator struct {
	repo *Repository

	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds a validator over the schema repository.
func NewSchemaValidator(repo *Repository) (*SchemaValidator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schema repo is required")
	}
	return &SchemaValidator{
		repo:     repo,
		compiled: map[string]*jsonschema.Schema{},
	}, nil
}

// Validate checks a context document against the newest active schema for
// the code. A failing document returns an error wrapping ErrSchemaValidation;
// a missing or uncompilable schema surfaces as a dependency error.
func (v *SchemaValidator) Validate(ctx context.Context, schemaCode string, doc map[string]any) error {
	schema, err := v.schemaFor(ctx, schemaCode)
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaValidation, schemaCode, err)
	}
	return nil
}

// Invalidate drops the compiled schema for one code.
func (v *SchemaValidator) Invalidate(schemaCode string) {
	v.mu.Lock()
	delete(v.compiled, schemaCode)
	v.mu.Unlock()
}

// InvalidateAll drops every compiled schema.
func (v *SchemaValidator) InvalidateAll() {
	v.mu.Lock()
	v.compiled = map[string]*jsonschema.Schema{}
	v.mu.Unlock()
}

func (v *SchemaValidator) schemaFor(ctx context.Context, schemaCode string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[schemaCode]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}

	row, err := v.repo.FindSchemaActiveByCode(ctx, schemaCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("schema %q not found", schemaCode))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schema")
	}

	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("mem://%s/v%d.json", row.SchemaCode, row.Version)
	if err := compiler.AddResource(resource, map[string]any(row.JSONSchema)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register schema resource")
	}
	schema, err = compiler.Compile(resource)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compile schema")
	}

	v.mu.Lock()
	v.compiled[schemaCode] = schema
	v.mu.Unlock()
	return schema, nil
}
