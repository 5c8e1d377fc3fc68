package types

import "github.com/actedhq/acted-backend/pkg/enums"

// Classification is the structural description of a product used to pick VAT rules.
// It is derived, never stored on the product itself; cart items may carry one as a
// metadata hint from the catalog.
type Classification struct {
	IsEbook        bool              `json:"is_ebook"`
	IsDigital      bool              `json:"is_digital"`
	IsMaterial     bool              `json:"is_material"`
	IsLiveTutorial bool              `json:"is_live_tutorial"`
	IsMarking      bool              `json:"is_marking"`
	ProductType    enums.ProductType `json:"product_type"`
}

// CartItemMetadata is the free-form metadata document stored on a cart item.
type CartItemMetadata struct {
	Classification *Classification `json:"classification,omitempty"`
	SourceSKU      string          `json:"source_sku,omitempty"`
	Extra          map[string]any  `json:"extra,omitempty"`
}
