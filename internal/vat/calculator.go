package vat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/internal/rules"
	"github.com/actedhq/acted-backend/internal/vatcontext"
	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/actedhq/acted-backend/pkg/types"
)

// FallbackRuleRef marks a line priced without any usable rule.
const FallbackRuleRef = "fallback:v0"

// fallbackExemptionReason accompanies FallbackRuleRef so downstream consumers
// can tell a deliberate zero rate from a degraded one.
const fallbackExemptionReason = "calculation_error"

// defaultRuleCodes names the standard-rate rule per region. Regions without
// one fall through to the zero-rate fallback.
var defaultRuleCodes = map[enums.RegionCode]string{
	enums.RegionUK: "vat_uk_standard",
	enums.RegionIE: "vat_ie_standard",
	enums.RegionSA: "vat_sa_standard",
}

// LineCalculation is the priced outcome for one cart line, kept in decimals
// for persistence and rendered to strings for the result document.
type LineCalculation struct {
	ItemID          string
	Net             decimal.Decimal
	Rate            decimal.Decimal
	VAT             decimal.Decimal
	Gross           decimal.Decimal
	RuleRef         string
	RuleID          *uuid.UUID
	RuleCode        string
	RuleVersion     int
	ExemptionReason string
	Fallback        bool
}

// LineResult renders the calculation for the result document.
func (c LineCalculation) LineResult() types.VATLineResult {
	return types.VATLineResult{
		ItemID:          c.ItemID,
		NetAmount:       types.MoneyString(c.Net),
		VATAmount:       types.MoneyString(c.VAT),
		VATRate:         types.RateString(c.Rate),
		VATRuleApplied:  c.RuleRef,
		ExemptionReason: c.ExemptionReason,
	}
}

// Calculator prices one cart line from an engine execution. When the engine
// produced no usable calculation it degrades to the region's standard-rate
// rule and, failing that, to a zero rate flagged as a calculation error.
type Calculator struct {
	rulesRepo *rules.Repository
}

// NewCalculator constructs a calculator over the rule repository.
func NewCalculator(rulesRepo *rules.Repository) (*Calculator, error) {
	if rulesRepo == nil {
		return nil, fmt.Errorf("rule repository required")
	}
	return &Calculator{rulesRepo: rulesRepo}, nil
}

// Calculate prices one line. vat_amount is net times rate rounded half-up to
// 2dp; gross is net plus the rounded vat.
func (c *Calculator) Calculate(ctx context.Context, region enums.RegionCode, item vatcontext.ItemContext, exec *rules.ExecutionResult) (LineCalculation, error) {
	net, err := decimal.NewFromString(item.NetAmount)
	if err != nil {
		return LineCalculation{}, fmt.Errorf("item %s: bad net amount %q: %w", item.ItemID, item.NetAmount, err)
	}

	if len(exec.Calculations) > 0 {
		selected := exec.Calculations[0]
		ruleID := selected.RuleID
		return priced(LineCalculation{
			ItemID:          item.ItemID,
			Net:             net,
			Rate:            selected.Rate,
			RuleRef:         fmt.Sprintf("%s:v%d", selected.RuleCode, selected.RuleVersion),
			RuleID:          &ruleID,
			RuleCode:        selected.RuleCode,
			RuleVersion:     selected.RuleVersion,
			ExemptionReason: selected.ExemptionReason,
		}), nil
	}

	return c.fallback(ctx, region, item.ItemID, net), nil
}

// fallback prices a line the engine could not: the region's standard-rate
// rule if one is defined and active, a flagged zero rate otherwise.
func (c *Calculator) fallback(ctx context.Context, region enums.RegionCode, itemID string, net decimal.Decimal) LineCalculation {
	if code, ok := defaultRuleCodes[region]; ok {
		if rule, err := c.rulesRepo.FindLatestByCode(ctx, code); err == nil && rule.Active {
			if rate, ok := firstSetVATRate(rule.Actions); ok {
				ruleID := rule.ID
				return priced(LineCalculation{
					ItemID:      itemID,
					Net:         net,
					Rate:        rate,
					RuleRef:     fmt.Sprintf("%s:v%d", rule.RuleCode, rule.Version),
					RuleID:      &ruleID,
					RuleCode:    rule.RuleCode,
					RuleVersion: rule.Version,
					Fallback:    true,
				})
			}
		}
	}

	return priced(LineCalculation{
		ItemID:          itemID,
		Net:             net,
		Rate:            decimal.Zero,
		RuleRef:         FallbackRuleRef,
		ExemptionReason: fallbackExemptionReason,
		Fallback:        true,
	})
}

func priced(line LineCalculation) LineCalculation {
	line.VAT = types.RoundMoney(line.Net.Mul(line.Rate))
	line.Gross = line.Net.Add(line.VAT)
	return line
}

func firstSetVATRate(actions []types.RuleAction) (decimal.Decimal, bool) {
	for _, action := range actions {
		if !strings.EqualFold(action.Type, types.ActionTypeSetVAT) {
			continue
		}
		rate, err := decimal.NewFromString(action.Rate)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return decimal.Decimal{}, false
		}
		return rate, true
	}
	return decimal.Decimal{}, false
}
