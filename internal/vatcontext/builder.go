package vatcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/internal/classify"
	"github.com/actedhq/acted-backend/internal/regions"
	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/types"
)

// UserContext describes the purchasing principal. ID and Region stay null
// for guests and for users without a home country on file.
type UserContext struct {
	ID      *string        `json:"id"`
	Region  *string        `json:"region"`
	Address AddressContext `json:"address"`
}

// AddressContext carries the home address fields relevant to VAT.
type AddressContext struct {
	Country  string `json:"country,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// ItemContext is one cart line as the rule engine sees it. Money travels as
// 2dp strings so evaluator coercion, not float formatting, decides comparisons.
type ItemContext struct {
	ItemID         string               `json:"item_id"`
	ProductCode    string               `json:"product_code"`
	Quantity       int                  `json:"quantity"`
	NetAmount      string               `json:"net_amount"`
	Classification types.Classification `json:"classification"`
}

// CartContext is the cart summary shared by every per-item evaluation.
type CartContext struct {
	ID       string        `json:"id"`
	Items    []ItemContext `json:"items"`
	TotalNet string        `json:"total_net"`
}

// SettingsContext carries the evaluation settings.
type SettingsContext struct {
	EffectiveDate  string `json:"effective_date"`
	ContextVersion string `json:"context_version"`
}

// Context is the canonical document rules evaluate against. The per-item
// documents add an "item" key on top of the shared base.
type Context struct {
	User     UserContext     `json:"user"`
	Cart     CartContext     `json:"cart"`
	Settings SettingsContext `json:"settings"`

	// Region is the resolved code, empty when no home country was known.
	Region enums.RegionCode `json:"-"`

	base map[string]any
}

// Builder assembles rule-evaluation contexts from carts and users.
type Builder struct {
	resolver *regions.Resolver
	version  string
}

// NewBuilder constructs a context builder.
func NewBuilder(resolver *regions.Resolver, contextVersion string) (*Builder, error) {
	if resolver == nil {
		return nil, fmt.Errorf("region resolver required")
	}
	if contextVersion == "" {
		return nil, fmt.Errorf("context version required")
	}
	return &Builder{resolver: resolver, version: contextVersion}, nil
}

// Build assembles the context for a cart at the given instant. Guests and
// users without a home country keep a null region; the rest-of-world default
// applies only when a known country has no mapping row.
func (b *Builder) Build(ctx context.Context, user *models.User, cart *models.Cart, at time.Time) (*Context, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}

	var iso, postcode string
	var userID *string
	if user != nil {
		id := user.ID.String()
		userID = &id
		if user.HomeCountryISO != nil {
			iso = *user.HomeCountryISO
		}
		if user.HomePostcode != nil {
			postcode = *user.HomePostcode
		}
	}

	var region enums.RegionCode
	var regionValue *string
	if iso != "" {
		resolved, err := b.resolver.ResolveOrDefault(ctx, iso, at)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve region")
		}
		region = resolved
		value := string(resolved)
		regionValue = &value
	}

	items := make([]ItemContext, 0, len(cart.Items))
	total := decimal.Zero
	for _, item := range sortedItems(cart.Items) {
		productCode := ""
		if item.ProductCode != nil {
			productCode = *item.ProductCode
		}
		net := types.RoundMoney(item.ActualPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		total = total.Add(net)

		items = append(items, ItemContext{
			ItemID:         item.ID.String(),
			ProductCode:    productCode,
			Quantity:       item.Quantity,
			NetAmount:      types.MoneyString(net),
			Classification: classificationFor(item),
		})
	}

	doc := &Context{
		User: UserContext{
			ID:     userID,
			Region: regionValue,
			Address: AddressContext{
				Country:  iso,
				Postcode: postcode,
			},
		},
		Cart: CartContext{
			ID:       cart.ID.String(),
			Items:    items,
			TotalNet: types.MoneyString(total),
		},
		Settings: SettingsContext{
			EffectiveDate:  at.UTC().Format("2006-01-02"),
			ContextVersion: b.version,
		},
		Region: region,
	}
	base, err := toJSONMap(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode context")
	}
	doc.base = base
	return doc, nil
}

// Document returns the shared base document with JSON-native value types.
func (c *Context) Document() map[string]any {
	return c.base
}

// DocumentForItem returns the base document plus the indexed item under "item".
func (c *Context) DocumentForItem(idx int) (map[string]any, error) {
	if idx < 0 || idx >= len(c.Items()) {
		return nil, fmt.Errorf("item index %d out of range", idx)
	}
	itemDoc, err := toJSONMap(c.Cart.Items[idx])
	if err != nil {
		return nil, err
	}

	doc := make(map[string]any, len(c.base)+1)
	for k, v := range c.base {
		doc[k] = v
	}
	doc["item"] = itemDoc
	return doc, nil
}

// Items returns the cart lines in evaluation order.
func (c *Context) Items() []ItemContext {
	return c.Cart.Items
}

// classificationFor prefers the catalog hint on the item metadata and falls
// back to deriving one from the product code.
func classificationFor(item models.CartItem) types.Classification {
	if item.Metadata != nil && item.Metadata.Classification != nil {
		return *item.Metadata.Classification
	}
	code := ""
	if item.ProductCode != nil {
		code = *item.ProductCode
	}
	return classify.Classify(code)
}

// sortedItems orders lines by position, then creation time for stable output.
func sortedItems(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// toJSONMap round-trips a value through JSON so nested values use the types
// the evaluator and schema validator expect.
func toJSONMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
