package types

// RuleAction is one ordered action attached to a VAT rule definition.
// For VAT rules the only action type is "set_vat"; Rate is a 4dp decimal string
// in [0.0000, 1.0000].
type RuleAction struct {
	Type            string `json:"type"`
	Rate            string `json:"rate,omitempty"`
	RuleCode        string `json:"rule_code,omitempty"`
	RuleVersion     int    `json:"rule_version,omitempty"`
	ExemptionReason string `json:"exemption_reason,omitempty"`
}

// ActionTypeSetVAT marks the action that assigns a VAT rate to a cart line.
const ActionTypeSetVAT = "set_vat"
