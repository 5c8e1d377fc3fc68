package vat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/internal/audit"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/internal/vatcontext"
	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

// StatusSuccess is the status written on a completed result document.
const StatusSuccess = "success"

// Service runs the full VAT pipeline for a cart.
type Service interface {
	CalculateVATForCart(ctx context.Context, cartID uuid.UUID, opts CalculateOptions) (*types.VATResultDoc, error)
}

// CalculateOptions tunes one calculation run.
type CalculateOptions struct {
	// RaiseOnError surfaces calculation failures to the caller instead of
	// only flagging the cart.
	RaiseOnError bool
}

// Params groups the service dependencies.
type Params struct {
	Logger     *logger.Logger
	DBClient   *db.Client
	Carts      *cart.Repository
	Items      *cart.ItemRepository
	Builder    *vatcontext.Builder
	Engine     *rules.Engine
	Calculator *Calculator
	Audits     *audit.Repository

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

type service struct {
	logg       *logger.Logger
	dbClient   *db.Client
	carts      *cart.Repository
	items      *cart.ItemRepository
	builder    *vatcontext.Builder
	engine     *rules.Engine
	calculator *Calculator
	audits     *audit.Repository
	now        func() time.Time
}

// NewService constructs the VAT calculation service.
func NewService(params Params) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DBClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Carts == nil || params.Items == nil {
		return nil, fmt.Errorf("cart repositories required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("context builder required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("rule engine required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("calculator required")
	}
	if params.Audits == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		logg:       params.Logger,
		dbClient:   params.DBClient,
		carts:      params.Carts,
		items:      params.Items,
		builder:    params.Builder,
		engine:     params.Engine,
		calculator: params.Calculator,
		audits:     params.Audits,
		now:        now,
	}, nil
}

// CalculateVATForCart builds the context, runs the rule engine per item,
// aggregates totals and persists the document, the per-line columns and one
// audit row. On failure the cart is flagged; the error reaches the caller
// only when opts.RaiseOnError is set. A missing cart is always an error.
func (s *service) CalculateVATForCart(ctx context.Context, cartID uuid.UUID, opts CalculateOptions) (*types.VATResultDoc, error) {
	start := s.now().UTC()
	executionID := audit.NewExecutionID(start)
	logCtx := s.logg.WithExecutionID(s.logg.WithCartID(ctx, cartID.String()), executionID)

	cartRow, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	doc, lines, executions, err := s.run(ctx, cartRow, start)
	if err != nil {
		return nil, s.fail(logCtx, cartID, executionID, start, err, opts)
	}

	result := s.aggregate(doc, lines, executions, executionID, start)

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.carts.WithTx(tx).SaveVATResult(ctx, cartID, result, start); err != nil {
			return fmt.Errorf("save vat result: %w", err)
		}
		for _, line := range lines {
			itemID, err := uuid.Parse(line.ItemID)
			if err != nil {
				return fmt.Errorf("parse item id %q: %w", line.ItemID, err)
			}
			update := cart.ItemVATUpdate{
				ItemID:       itemID,
				Region:       doc.Region,
				Rate:         line.Rate,
				VATAmount:    line.VAT,
				GrossAmount:  line.Gross,
				RuleVersion:  line.RuleRef,
				CalculatedAt: start,
			}
			if err := s.items.WithTx(tx).ApplyVAT(ctx, update); err != nil {
				return fmt.Errorf("apply vat to item %s: %w", line.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(logCtx, cartID, executionID, start, err, opts)
	}

	s.writeAudit(logCtx, doc.Document(), result, lines, executions, executionID, start)
	s.logg.Info(logCtx, "vat calculation completed")
	return result, nil
}

// run executes the engine once per item and prices every line.
func (s *service) run(ctx context.Context, cartRow *models.Cart, at time.Time) (*vatcontext.Context, []LineCalculation, []rules.RuleExecution, error) {
	doc, err := s.builder.Build(ctx, cartRow.User, cartRow, at)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build context: %w", err)
	}

	lines := make([]LineCalculation, 0, len(doc.Items()))
	var executions []rules.RuleExecution
	for idx, item := range doc.Items() {
		itemDoc, err := doc.DocumentForItem(idx)
		if err != nil {
			return nil, nil, nil, err
		}
		exec, err := s.engine.Execute(ctx, rules.EntryPointCartCalculateVAT, itemDoc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("execute rules for item %s: %w", item.ItemID, err)
		}
		executions = append(executions, exec.RulesExecuted...)

		line, err := s.calculator.Calculate(ctx, doc.Region, item, exec)
		if err != nil {
			return nil, nil, nil, err
		}
		lines = append(lines, line)
	}
	return doc, lines, executions, nil
}

// aggregate renders the result document. Totals are sums of the already
// rounded per-line values, so the totals equal what each line shows.
func (s *service) aggregate(doc *vatcontext.Context, lines []LineCalculation, executions []rules.RuleExecution, executionID string, start time.Time) *types.VATResultDoc {
	items := make([]types.VATLineResult, 0, len(lines))
	totalNet, totalVAT := decimal.Zero, decimal.Zero
	for _, line := range lines {
		items = append(items, line.LineResult())
		totalNet = totalNet.Add(line.Net)
		totalVAT = totalVAT.Add(line.VAT)
	}

	return &types.VATResultDoc{
		Status:      StatusSuccess,
		ExecutionID: executionID,
		VATCalculations: types.VATCalculations{
			Items: items,
			Totals: types.VATTotals{
				TotalNet:   types.MoneyString(totalNet),
				TotalVAT:   types.MoneyString(totalVAT),
				TotalGross: types.MoneyString(totalNet.Add(totalVAT)),
			},
			RegionInfo: types.RegionInfo{
				Country: doc.User.Address.Country,
				Region:  string(doc.Region),
			},
		},
		RulesExecuted:   uniqueRuleRefs(lines, executions),
		ExecutionTimeMS: s.now().UTC().Sub(start).Milliseconds(),
		CreatedAt:       start.Format(time.RFC3339),
	}
}

// fail flags the cart, audits the failed run and honors the raise option.
func (s *service) fail(ctx context.Context, cartID uuid.UUID, executionID string, start time.Time, cause error, opts CalculateOptions) error {
	s.logg.Error(ctx, "vat calculation failed", cause)

	if err := s.carts.SetVATError(ctx, cartID, cause.Error()); err != nil {
		s.logg.Error(ctx, "flagging cart after failed calculation", err)
	}

	row := &models.RuleExecutionAudit{
		ExecutionID:  executionID,
		InputContext: types.JSONMap{"cart": map[string]any{"id": cartID.String()}},
		OutputData:   types.JSONMap{"status": "error", "message": cause.Error()},
		DurationMS:   s.now().UTC().Sub(start).Milliseconds(),
	}
	if err := s.audits.Insert(ctx, row); err != nil {
		s.logg.Error(ctx, "writing audit row for failed calculation", err)
	}

	if opts.RaiseOnError {
		return pkgerrors.Wrap(pkgerrors.CodeCalculation, cause, "vat calculation failed")
	}
	return nil
}

// writeAudit appends the single audit row for a successful run. Audit trouble
// is logged, never surfaced; the calculation already committed.
func (s *service) writeAudit(ctx context.Context, input map[string]any, result *types.VATResultDoc, lines []LineCalculation, executions []rules.RuleExecution, executionID string, start time.Time) {
	row := &models.RuleExecutionAudit{
		ExecutionID:  executionID,
		RuleCodes:    pq.StringArray(uniqueRuleCodes(executions)),
		InputContext: types.JSONMap(input),
		DurationMS:   result.ExecutionTimeMS,
	}
	for _, line := range lines {
		if line.RuleID != nil {
			row.RuleID = line.RuleID
			row.RuleVersion = line.RuleVersion
			break
		}
	}
	if output, err := toJSONMap(result); err == nil {
		row.OutputData = output
	} else {
		s.logg.Error(ctx, "encoding audit output", err)
	}

	if err := s.audits.Insert(ctx, row); err != nil {
		s.logg.Error(ctx, "writing audit row", err)
	}
}

// uniqueRuleRefs lists every rule reference seen across the run, first-seen
// order, applied lines first.
func uniqueRuleRefs(lines []LineCalculation, executions []rules.RuleExecution) []string {
	seen := map[string]bool{}
	refs := make([]string, 0, len(lines))
	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	for _, line := range lines {
		add(line.RuleRef)
	}
	for _, exec := range executions {
		add(fmt.Sprintf("%s:v%d", exec.RuleCode, exec.Version))
	}
	return refs
}

func uniqueRuleCodes(executions []rules.RuleExecution) []string {
	seen := map[string]bool{}
	codes := make([]string, 0, len(executions))
	for _, exec := range executions {
		if !seen[exec.RuleCode] {
			seen[exec.RuleCode] = true
			codes = append(codes, exec.RuleCode)
		}
	}
	return codes
}

func toJSONMap(v any) (types.JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out types.JSONMap
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
