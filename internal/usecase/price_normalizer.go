package usecase

import (
	"log"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/matpris/backend/internal/domain"
)

// Compiled regex patterns for price and package size parsing
var (
	// Matches store-declared unit prices like "kr 159,80/kg", "159.8 kr / kg"
	unitPricePattern = regexp.MustCompile(`(?i)(?:kr\.?\s*)?(\d+(?:[.,]\d+)?)\s*(?:kr\.?)?\s*/\s*kg`)

	// Matches multi-pack sizes like "2 x 75g", "2×75 g", "3 pk à 100g"
	multiPackPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x|×|pk\.?\s*(?:à|a))\s*(\d+(?:[.,]\d+)?)\s*(g|kg|ml|l)\b`)

	// Matches plain sizes like "500g", "1,5 l", "400 ml"
	packageSizePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(g|kg|ml|l)\b`)
)

// reconcileTolerancePct is the allowed disagreement between a store-declared
// unit price and one computed from price and package size before the product
// is flagged as a data-quality signal (usually multi-pack mislabeling).
const reconcileTolerancePct = 10.0

var thousand = decimal.NewFromInt(1000)

// PriceNormalizer derives a canonical price-per-kilogram for raw products.
type PriceNormalizer struct {
	enableDebugLogging bool
}

// NewPriceNormalizer creates a new price normalizer
func NewPriceNormalizer(enableDebugLogging bool) *PriceNormalizer {
	return &PriceNormalizer{enableDebugLogging: enableDebugLogging}
}

// PricePerKg returns the canonical price per kilogram for a product, or nil
// when neither a declared unit price nor a parsable package size exists.
// A nil result is expected partial data, not an error.
//
// The store-declared unit price is preferred. When both a declared and a
// computed value exist and disagree by more than the tolerance, a warning is
// logged but the declared value still wins.
func (n *PriceNormalizer) PricePerKg(product domain.RawProduct) *decimal.Decimal {
	declared := ParseUnitPrice(product.UnitPrice)

	var computed *decimal.Decimal
	if size := ParsePackageSize(product.PackageSize); size != nil {
		computed = ComputePricePerKg(product.Price, *size)
	}

	if declared != nil && computed != nil {
		diff := percentDiff(*declared, *computed)
		if diff > reconcileTolerancePct {
			log.Printf("[PRICE] %q: declared %s kr/kg vs computed %s kr/kg differ by %.1f%% (likely multi-pack mislabeling)",
				product.Title, declared.StringFixed(2), computed.StringFixed(2), diff)
		} else if n.enableDebugLogging {
			log.Printf("[PRICE] %q: declared %s kr/kg agrees with computed %s kr/kg",
				product.Title, declared.StringFixed(2), computed.StringFixed(2))
		}
	}

	if declared != nil {
		return declared
	}
	return computed
}

// ParseUnitPrice parses a store-declared "<number> kr/kg" string. Comma
// decimals are accepted. Returns nil when the string does not declare a
// per-kilogram price.
func ParseUnitPrice(s string) *decimal.Decimal {
	m := unitPricePattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

// ParsePackageSize parses a package size string into a normalized size.
// Multi-packs are multiplied out: "2 x 75g" yields 150 g total. Supported
// units are g, kg, ml and l; ml/l are treated as g/kg by the mass-volume
// identity assumption for groceries.
func ParsePackageSize(s string) *domain.PackageSize {
	if m := multiPackPattern.FindStringSubmatch(s); m != nil {
		count, err1 := decimal.NewFromString(m[1])
		per, err2 := decimal.NewFromString(strings.ReplaceAll(m[2], ",", "."))
		if err1 != nil || err2 != nil {
			return nil
		}
		unit := strings.ToLower(m[3])
		total := count.Mul(per)
		return &domain.PackageSize{
			Value: total,
			Unit:  unit,
			Grams: total.Mul(gramsPerUnit(unit)),
		}
	}

	if m := packageSizePattern.FindStringSubmatch(s); m != nil {
		value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
		if err != nil {
			return nil
		}
		unit := strings.ToLower(m[2])
		return &domain.PackageSize{
			Value: value,
			Unit:  unit,
			Grams: value.Mul(gramsPerUnit(unit)),
		}
	}

	return nil
}

// ComputePricePerKg computes price/grams*1000 rounded to øre precision.
// Returns nil for non-positive sizes or prices.
func ComputePricePerKg(price decimal.Decimal, size domain.PackageSize) *decimal.Decimal {
	if !price.IsPositive() || !size.Grams.IsPositive() {
		return nil
	}
	perKg := price.Div(size.Grams).Mul(thousand).Round(2)
	return &perKg
}

// gramsPerUnit maps a size unit to its gram multiplier
func gramsPerUnit(unit string) decimal.Decimal {
	switch unit {
	case "kg", "l":
		return thousand
	default: // g, ml
		return decimal.NewFromInt(1)
	}
}

// percentDiff returns the relative difference between two positive values
// as a percentage of the declared value.
func percentDiff(declared, computed decimal.Decimal) float64 {
	if declared.IsZero() {
		return 0
	}
	diff, _ := declared.Sub(computed).Abs().Div(declared).Mul(decimal.NewFromInt(100)).Float64()
	return diff
}
