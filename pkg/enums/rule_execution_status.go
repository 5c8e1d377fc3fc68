package enums

// RuleExecutionStatus describes the outcome of one rule within an engine run.
type RuleExecutionStatus string

const (
	RuleStatusMatched        RuleExecutionStatus = "matched"
	RuleStatusNotMatched     RuleExecutionStatus = "not_matched"
	RuleStatusSchemaError    RuleExecutionStatus = "schema_error"
	RuleStatusConditionError RuleExecutionStatus = "condition_error"
	RuleStatusActionError    RuleExecutionStatus = "action_error"
)

// String implements fmt.Stringer.
func (s RuleExecutionStatus) String() string {
	return string(s)
}

// IsError reports whether the status represents a per-rule failure.
func (s RuleExecutionStatus) IsError() bool {
	switch s {
	case RuleStatusSchemaError, RuleStatusConditionError, RuleStatusActionError:
		return true
	}
	return false
}
