package types

// VATResultDoc is the serialized result document cached on a cart after a
// successful VAT calculation. Every monetary field is a decimal string so the
// JSON round-trip never loses precision.
type VATResultDoc struct {
	Status          string          `json:"status"`
	ExecutionID     string          `json:"execution_id"`
	VATCalculations VATCalculations `json:"vat_calculations"`
	RulesExecuted   []string        `json:"rules_executed"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	CreatedAt       string          `json:"created_at"`
}

type VATCalculations struct {
	Items      []VATLineResult `json:"items"`
	Totals     VATTotals       `json:"totals"`
	RegionInfo RegionInfo      `json:"region_info"`
}

// VATLineResult is the per-item outcome of the VAT calculator.
type VATLineResult struct {
	ItemID          string `json:"item_id"`
	NetAmount       string `json:"net_amount"`
	VATAmount       string `json:"vat_amount"`
	VATRate         string `json:"vat_rate"`
	VATRuleApplied  string `json:"vat_rule_applied"`
	ExemptionReason string `json:"exemption_reason,omitempty"`
}

type VATTotals struct {
	TotalNet   string `json:"total_net"`
	TotalVAT   string `json:"total_vat"`
	TotalGross string `json:"total_gross"`
}

type RegionInfo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
}
