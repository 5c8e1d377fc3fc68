package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCondition(t *testing.T, raw string) map[string]any {
	t.Helper()
	var condition map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &condition))
	return condition
}

func vatContext() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":     "u-1",
			"region": "UK",
			"address": map[string]any{
				"country":  "GB",
				"postcode": "AB1 2CD",
			},
		},
		"item": map[string]any{
			"item_id":      "i-1",
			"product_code": "CM1-EBOOK-2025",
			"net_amount":   "45.50",
			"quantity":     float64(2),
			"classification": map[string]any{
				"is_ebook":   true,
				"is_digital": true,
			},
		},
		"cart": map[string]any{
			"id":        "c-1",
			"total_net": "91.00",
			"items": []any{
				map[string]any{"net_amount": "45.50", "quantity": float64(2)},
			},
		},
		"settings": map[string]any{
			"effective_date":  "2025-04-01T00:00:00Z",
			"context_version": "1.0",
		},
	}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"always true", `{"always": true}`, true},
		{"equality on var", `{"==": [{"var": "user.region"}, "UK"]}`, true},
		{"inequality", `{"!=": [{"var": "user.region"}, "EU"]}`, true},
		{"nested bool var", `{"==": [{"var": "item.classification.is_ebook"}, true]}`, true},
		{"and both true", `{"and": [{"==": [{"var": "user.region"}, "UK"]}, {"==": [{"var": "item.classification.is_ebook"}, true]}]}`, true},
		{"and short circuits", `{"and": [{"==": [{"var": "user.region"}, "IE"]}, {"always": true}]}`, false},
		{"or second true", `{"or": [{"==": [{"var": "user.region"}, "IE"]}, {"==": [{"var": "user.region"}, "UK"]}]}`, true},
		{"not", `{"not": {"==": [{"var": "user.region"}, "IE"]}}`, true},
		{"in membership", `{"in": [{"var": "user.region"}, ["EU", "UK", "ROW"]]}`, true},
		{"in miss", `{"in": [{"var": "user.region"}, ["EU", "ROW"]]}`, false},
		{"numeric string coercion", `{">": [{"var": "item.net_amount"}, 40]}`, true},
		{"numeric string equality", `{"==": [{"var": "cart.total_net"}, 91]}`, true},
		{"date strings order lexically", `{">=": [{"var": "settings.effective_date"}, "2021-01-01T00:00:00Z"]}`, true},
		{"some over items", `{"some": [{"var": "cart.items"}, {">": [{"var": "quantity"}, 1]}]}`, true},
		{"all over items", `{"all": [{"var": "cart.items"}, {">": [{"var": "net_amount"}, 100]}]}`, false},
	}

	ctx := vatContext()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(parseCondition(t, tc.condition), ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateNullSemantics(t *testing.T) {
	ctx := vatContext()

	tests := []struct {
		name      string
		condition string
	}{
		{"missing path equality", `{"==": [{"var": "user.vat_number"}, "GB123"]}`},
		{"missing path inequality", `{"!=": [{"var": "user.vat_number"}, "GB123"]}`},
		{"missing path ordering", `{">": [{"var": "user.vat_number"}, 0]}`},
		{"missing path equals null literal", `{"==": [{"var": "user.vat_number"}, null]}`},
		{"null needle for in", `{"in": [{"var": "user.vat_number"}, ["GB123"]]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(parseCondition(t, tc.condition), ctx)
			require.NoError(t, err)
			assert.False(t, got)
		})
	}
}

func TestEvaluateEmptyCondition(t *testing.T) {
	got, err := Evaluate(nil, vatContext())
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(map[string]any{}, vatContext())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name      string
		condition string
	}{
		{"unknown operator", `{"frobnicate": [1, 2]}`},
		{"two operators in one object", `{"==": [1, 1], "!=": [1, 2]}`},
		{"always false literal", `{"always": false}`},
		{"comparison arity", `{"==": [1]}`},
		{"and over non-bools", `{"and": [{"var": "user.region"}]}`},
		{"non-bool result", `{"var": "user.region"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(parseCondition(t, tc.condition), vatContext())
			assert.Error(t, err)
		})
	}
}

func TestEvaluateDoesNotMutateContext(t *testing.T) {
	ctx := vatContext()
	want := vatContext()

	_, err := Evaluate(parseCondition(t, `{"some": [{"var": "cart.items"}, {">": [{"var": "quantity"}, 0]}]}`), ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ctx)
}

func TestEvaluateMixedTypeComparisonsAreFalse(t *testing.T) {
	ctx := vatContext()

	got, err := Evaluate(parseCondition(t, `{"==": [{"var": "item.classification.is_ebook"}, "true"]}`), ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(parseCondition(t, `{"<": [{"var": "user.region"}, 5]}`), ctx)
	require.NoError(t, err)
	assert.False(t, got)
}
