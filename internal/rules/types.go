package rules

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/pkg/enums"
)

// EntryPointCartCalculateVAT is the hook the VAT pipeline executes per cart item.
const EntryPointCartCalculateVAT = "cart_calculate_vat"

// RuleExecution records the outcome of one rule inside an engine run.
type RuleExecution struct {
	RuleID   uuid.UUID                 `json:"rule_id"`
	RuleCode string                    `json:"rule_code"`
	Version  int                       `json:"version"`
	Status   enums.RuleExecutionStatus `json:"status"`
	Error    string                    `json:"error,omitempty"`
}

// Calculation is the output of a set_vat action.
type Calculation struct {
	Rate            decimal.Decimal `json:"rate"`
	RuleID          uuid.UUID       `json:"rule_id"`
	RuleCode        string          `json:"rule_code"`
	RuleVersion     int             `json:"rule_version"`
	ExemptionReason string          `json:"exemption_reason,omitempty"`
}

// ExecutionResult is the aggregate outcome of Engine.Execute. For the VAT
// entry point only Calculations and RulesExecuted carry data; the remaining
// fields exist for entry points that gate or annotate instead of calculate.
type ExecutionResult struct {
	Success                 bool            `json:"success"`
	Blocked                 bool            `json:"blocked"`
	Messages                []string        `json:"messages"`
	RequiredAcknowledgments []string        `json:"required_acknowledgments"`
	RulesExecuted           []RuleExecution `json:"rules_executed"`
	Calculations            []Calculation   `json:"calculations"`
	Preferences             []string        `json:"preferences"`
}
