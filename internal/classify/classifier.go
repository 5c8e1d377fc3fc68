package classify

import (
	"strings"

	"github.com/actedhq/acted-backend/pkg/enums"
	"github.com/actedhq/acted-backend/pkg/types"
)

// Classify derives the structural classification of a product from its code.
// It is a pure function: no I/O, same input same output. Matching is
// case-insensitive; empty or missing codes fall back to printed material.
//
// Precedence (first match wins): marking > ebook > live tutorial > digital > material.
func Classify(productCode string) types.Classification {
	code := strings.ToUpper(strings.TrimSpace(productCode))

	switch {
	case strings.Contains(code, "MARK"):
		return types.Classification{
			IsMarking:   true,
			ProductType: enums.ProductTypeMarking,
		}
	case strings.Contains(code, "EBOOK") || strings.Contains(code, "E-BOOK"):
		return types.Classification{
			IsEbook:     true,
			IsDigital:   true,
			ProductType: enums.ProductTypeEbook,
		}
	case strings.Contains(code, "LIVE"):
		return types.Classification{
			IsLiveTutorial: true,
			ProductType:    enums.ProductTypeLiveTutorial,
		}
	case strings.Contains(code, "DIGITAL") || strings.Contains(code, "ONLINE"):
		return types.Classification{
			IsDigital:   true,
			ProductType: enums.ProductTypeDigital,
		}
	default:
		// PRINT codes and everything unrecognized are printed material.
		return types.Classification{
			IsMaterial:  true,
			ProductType: enums.ProductTypeMaterial,
		}
	}
}
