// Package stores implements the per-site product extractors. Each source
// tries structured extraction from intercepted API payloads first and falls
// back to selector-based document extraction on the rendered page.
package stores

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/matpris/backend/internal/domain"
	"github.com/matpris/backend/internal/infrastructure/browser"
)

// fieldAliases maps a logical field to the source keys that may carry it,
// tried in order; the first present key wins. Scraped APIs are duck-typed
// and shift key names between layout revisions, so every lookup is tolerant.
type fieldAliases map[string][]string

// payloadSpec describes how to pull products out of a store's intercepted
// API responses.
type payloadSpec struct {
	urlHint    string   // substring the response URL must contain; empty accepts all
	containers []string // dot paths that may hold the item array
	aliases    fieldAliases
}

// documentSpec describes the rendered-page fallback.
type documentSpec struct {
	itemSelector string
}

// Compiled regex patterns for composite label/text parsing
var (
	// First plausible shelf price in a text blob: "kr 79,90", "79,90 kr", "79.90,-"
	blobPricePattern = regexp.MustCompile(`(?:kr\s*)?(\d+(?:[.,]\d{1,2})?)\s*(?:kr\b|,-)|kr\s*(\d+(?:[.,]\d{1,2})?)`)

	// Store-declared unit price substring, kept verbatim for the normalizer
	blobUnitPricePattern = regexp.MustCompile(`(?i)(?:kr\.?\s*)?\d+(?:[.,]\d+)?\s*(?:kr\.?)?\s*/\s*kg`)

	// Package size substring, multi-pack form first so "2 x 75g" is not
	// truncated to "75g"
	blobPackagePattern = regexp.MustCompile(`(?i)\b\d+\s*(?:x|×|pk\.?\s*(?:à|a))\s*\d+(?:[.,]\d+)?\s*(?:g|kg|ml|l)\b|\b\d+(?:[.,]\d+)?\s*(?:g|kg|ml|l)\b`)
)

// extractFromPayloads parses intercepted API responses into raw products,
// at most limit entries, all with a positive price.
func extractFromPayloads(payloads []browser.CollectedResponse, spec payloadSpec, limit int) []domain.RawProduct {
	var out []domain.RawProduct
	for _, payload := range payloads {
		if spec.urlHint != "" && !strings.Contains(payload.URL, spec.urlHint) {
			continue
		}
		for _, item := range itemsIn(payload.Data, spec.containers) {
			p, ok := parseItem(item, spec.aliases)
			if !ok {
				continue
			}
			out = append(out, p)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// itemsIn locates the item array inside a payload: either one of the known
// container paths, or the payload itself when it is a bare array of
// item-like objects.
func itemsIn(data json.RawMessage, containers []string) []map[string]any {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil
	}

	if arr, ok := root.([]any); ok {
		return itemMaps(arr)
	}

	obj, ok := root.(map[string]any)
	if !ok {
		return nil
	}
	for _, path := range containers {
		if v, ok := lookupPath(obj, path); ok {
			if arr, ok := v.([]any); ok {
				if items := itemMaps(arr); len(items) > 0 {
					return items
				}
			}
		}
	}
	return nil
}

// lookupPath resolves a dot path like "data.products" in a decoded object
func lookupPath(obj map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = obj
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// itemMaps keeps the elements of an array that look like product objects
func itemMaps(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// parseItem converts one duck-typed API item into a raw product. Items
// without a usable title or a positive price are dropped silently.
func parseItem(item map[string]any, aliases fieldAliases) (domain.RawProduct, bool) {
	title := stringField(item, aliases["title"])
	if title == "" {
		return domain.RawProduct{}, false
	}
	price, ok := priceField(item, aliases["price"])
	if !ok {
		return domain.RawProduct{}, false
	}

	unitPrice := stringField(item, aliases["unitPrice"])
	if unitPrice == "" {
		// Some APIs split the unit price into a numeric value and a unit
		// abbreviation; recompose them into the canonical string form.
		if v, ok := priceField(item, aliases["unitPriceValue"]); ok {
			unit := stringField(item, aliases["unitPriceUnit"])
			if unit == "" {
				unit = "kg"
			}
			unitPrice = fmt.Sprintf("%s kr/%s", v.String(), unit)
		}
	}

	return domain.RawProduct{
		ID:          stringField(item, aliases["id"]),
		Title:       title,
		Brand:       stringField(item, aliases["brand"]),
		Price:       price,
		UnitPrice:   unitPrice,
		PackageSize: stringField(item, aliases["packageSize"]),
		ImageURL:    stringField(item, aliases["imageUrl"]),
		URL:         stringField(item, aliases["url"]),
		Badges:      stringsField(item, aliases["badges"]),
	}, true
}

// stringField returns the first present key rendered as a string
func stringField(item map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
		}
	}
	return ""
}

// stringsField returns the first present key holding a string array
func stringsField(item map[string]any, keys []string) []string {
	for _, key := range keys {
		arr, ok := item[key].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// priceField returns the first present key parsed as a positive price.
// Accepts JSON numbers and strings with either decimal separator.
func priceField(item map[string]any, keys []string) (decimal.Decimal, bool) {
	for _, key := range keys {
		switch v := item[key].(type) {
		case float64:
			d := decimal.NewFromFloat(v)
			if d.IsPositive() {
				return d, true
			}
		case string:
			if d, ok := parsePriceString(v); ok {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// parsePriceString parses a price with comma or dot decimals; non-positive
// and unparsable values are rejected.
func parsePriceString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseLabelBlob recovers product fields from one document item's combined
// label/text content. The first non-empty line is the title; price, unit
// price and package size are pulled by pattern from the whole blob.
func parseLabelBlob(text string) (title string, price decimal.Decimal, unitPrice, packageSize string, ok bool) {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			title = s
			break
		}
	}
	if title == "" {
		return "", decimal.Decimal{}, "", "", false
	}

	unitPrice = strings.TrimSpace(blobUnitPricePattern.FindString(text))

	// The unit price also matches the shelf-price pattern; search a copy
	// with it removed so "159,80 kr/kg" is not mistaken for the price.
	priceText := text
	if unitPrice != "" {
		priceText = strings.Replace(priceText, unitPrice, " ", 1)
	}
	m := blobPricePattern.FindStringSubmatch(priceText)
	if m == nil {
		return "", decimal.Decimal{}, "", "", false
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	price, priceOK := parsePriceString(raw)
	if !priceOK {
		return "", decimal.Decimal{}, "", "", false
	}

	packageSize = strings.TrimSpace(blobPackagePattern.FindString(text))
	return title, price, unitPrice, packageSize, true
}

// canonicalLink strips query and fragment so one product counts once per
// page however it was linked.
func canonicalLink(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return strings.TrimSuffix(href, "/")
}
