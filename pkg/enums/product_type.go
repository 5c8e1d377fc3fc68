package enums

import "fmt"

// ProductType is the coarse classification bucket used by VAT rules.
type ProductType string

const (
	ProductTypeEbook        ProductType = "ebook"
	ProductTypeMaterial     ProductType = "material"
	ProductTypeDigital      ProductType = "digital"
	ProductTypeLiveTutorial ProductType = "live_tutorial"
	ProductTypeMarking      ProductType = "marking"
)

var validProductTypes = []ProductType{
	ProductTypeEbook,
	ProductTypeMaterial,
	ProductTypeDigital,
	ProductTypeLiveTutorial,
	ProductTypeMarking,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the product type is recognized.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductType converts a raw string into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
