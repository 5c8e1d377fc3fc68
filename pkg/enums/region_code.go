package enums

import "fmt"

// RegionCode identifies a VAT treatment region.
type RegionCode string

const (
	RegionUK  RegionCode = "UK"
	RegionIE  RegionCode = "IE"
	RegionEU  RegionCode = "EU"
	RegionSA  RegionCode = "SA"
	RegionROW RegionCode = "ROW"
)

var validRegionCodes = []RegionCode{
	RegionUK,
	RegionIE,
	RegionEU,
	RegionSA,
	RegionROW,
}

// String implements fmt.Stringer.
func (r RegionCode) String() string {
	return string(r)
}

// IsValid reports whether the region code is recognized.
func (r RegionCode) IsValid() bool {
	for _, candidate := range validRegionCodes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRegionCode converts a raw string into a RegionCode.
func ParseRegionCode(value string) (RegionCode, error) {
	for _, candidate := range validRegionCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid region code %q", value)
}
