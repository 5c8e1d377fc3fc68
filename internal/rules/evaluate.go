package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluate runs a JSON condition expression against a context document.
// The evaluator is pure: no I/O, no clock, no mutation of the context.
//
// Semantics:
//   - a nil or empty condition is false
//   - {"always": true} is an explicit true literal
//   - missing var paths resolve to null; any comparison against null is false
//   - strings that parse as numbers compare numerically, otherwise
//     lexicographically (ISO dates therefore order chronologically)
func Evaluate(condition map[string]any, context map[string]any) (bool, error) {
	if len(condition) == 0 {
		return false, nil
	}
	result, err := evalExpr(condition, context)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition evaluated to %T, want bool", result)
	}
	return b, nil
}

func evalExpr(expr map[string]any, ctx map[string]any) (any, error) {
	if len(expr) != 1 {
		return nil, fmt.Errorf("expression must contain exactly one operator, got %d", len(expr))
	}

	var op string
	var raw any
	for k, v := range expr {
		op, raw = k, v
	}

	switch op {
	case "always":
		b, ok := raw.(bool)
		if !ok || !b {
			return nil, fmt.Errorf(`"always" accepts only boolean true`)
		}
		return true, nil

	case "var":
		path, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf(`"var" wants a string path, got %T`, raw)
		}
		return lookupPath(ctx, path), nil

	case "and", "or":
		return evalLogic(op, raw, ctx)

	case "not":
		operand, err := evalOperand(raw, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := operand.(bool)
		if !ok {
			return nil, fmt.Errorf(`"not" wants a boolean operand, got %T`, operand)
		}
		return !b, nil

	case "==", "!=", "<", "<=", ">", ">=":
		return evalComparison(op, raw, ctx)

	case "in":
		return evalIn(raw, ctx)

	case "some", "all":
		return evalQuantifier(op, raw, ctx)

	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func evalLogic(op string, raw any, ctx map[string]any) (any, error) {
	operands, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%q wants a list of operands", op)
	}
	for _, operand := range operands {
		value, err := evalOperand(operand, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%q operand evaluated to %T, want bool", op, value)
		}
		if op == "and" && !b {
			return false, nil
		}
		if op == "or" && b {
			return true, nil
		}
	}
	return op == "and", nil
}

func evalComparison(op string, raw any, ctx map[string]any) (any, error) {
	args, ok := raw.([]any)
	if !ok || len(args) != 2 {
		return nil, fmt.Errorf("%q wants exactly two operands", op)
	}
	left, err := evalOperand(args[0], ctx)
	if err != nil {
		return nil, err
	}
	right, err := evalOperand(args[1], ctx)
	if err != nil {
		return nil, err
	}

	// Comparisons against null are false, equality included.
	if left == nil || right == nil {
		return false, nil
	}

	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	cmp, comparable := looseCompare(left, right)
	if !comparable {
		return false, nil
	}
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison %q", op)
}

func evalIn(raw any, ctx map[string]any) (any, error) {
	args, ok := raw.([]any)
	if !ok || len(args) != 2 {
		return nil, fmt.Errorf(`"in" wants [needle, list]`)
	}
	needle, err := evalOperand(args[0], ctx)
	if err != nil {
		return nil, err
	}
	haystack, err := evalOperand(args[1], ctx)
	if err != nil {
		return nil, err
	}
	if needle == nil {
		return false, nil
	}
	list, ok := haystack.([]any)
	if !ok {
		return false, nil
	}
	for _, candidate := range list {
		if looseEqual(needle, candidate) {
			return true, nil
		}
	}
	return false, nil
}

func evalQuantifier(op string, raw any, ctx map[string]any) (any, error) {
	args, ok := raw.([]any)
	if !ok || len(args) != 2 {
		return nil, fmt.Errorf("%q wants [list, predicate]", op)
	}
	source, err := evalOperand(args[0], ctx)
	if err != nil {
		return nil, err
	}
	predicate, ok := args[1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%q predicate must be an expression", op)
	}
	list, ok := source.([]any)
	if !ok {
		// null or non-list source: "some" finds nothing, "all" is vacuous.
		return op == "all", nil
	}

	for _, element := range list {
		elementCtx, ok := element.(map[string]any)
		if !ok {
			elementCtx = map[string]any{"": element}
		}
		value, err := evalExpr(predicate, elementCtx)
		if err != nil {
			return nil, err
		}
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%q predicate evaluated to %T, want bool", op, value)
		}
		if op == "some" && b {
			return true, nil
		}
		if op == "all" && !b {
			return false, nil
		}
	}
	return op == "all", nil
}

// evalOperand resolves a literal or a nested expression.
func evalOperand(operand any, ctx map[string]any) (any, error) {
	switch v := operand.(type) {
	case map[string]any:
		return evalExpr(v, ctx)
	case []any:
		resolved := make([]any, 0, len(v))
		for _, element := range v {
			value, err := evalOperand(element, ctx)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, value)
		}
		return resolved, nil
	default:
		return v, nil
	}
}

// lookupPath walks a dotted path through nested JSON objects. Missing
// segments resolve to nil.
func lookupPath(ctx map[string]any, path string) any {
	if path == "" {
		if value, ok := ctx[""]; ok {
			return value
		}
		return nil
	}
	var current any = ctx
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = object[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// looseEqual compares two JSON values, coercing numeric strings to numbers.
func looseEqual(a, b any) bool {
	an, aNumeric := asDecimal(a)
	bn, bNumeric := asDecimal(b)
	if aNumeric && bNumeric {
		return an.Equal(bn)
	}
	if aNumeric != bNumeric {
		return false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// looseCompare orders two values. Numbers (and numeric strings) order
// numerically, strings lexicographically. Anything else is not comparable.
func looseCompare(a, b any) (int, bool) {
	an, aNumeric := asDecimal(a)
	bn, bNumeric := asDecimal(b)
	if aNumeric && bNumeric {
		return an.Cmp(bn), true
	}

	as, aString := a.(string)
	bs, bString := b.(string)
	if aString && bString {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}
