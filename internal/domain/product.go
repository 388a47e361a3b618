package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store identifies a retail source site.
type Store string

const (
	StoreOda  Store = "oda"
	StoreMeny Store = "meny"
)

// RawProduct is a product as extracted from one store's search results,
// either from an intercepted API payload or from the rendered document.
// It lives only within a single ingredient processing cycle.
type RawProduct struct {
	ID          string
	Title       string
	Brand       string
	Price       decimal.Decimal // NOK, always > 0 once extracted
	UnitPrice   string          // store-declared, e.g. "159,80 kr/kg"; may be empty
	PackageSize string          // e.g. "500g", "2 x 75g"; may be empty
	ImageURL    string
	URL         string
	Badges      []string
}

// PackageSize is a parsed package size. Value/Unit keep the declared figure,
// Grams carries the normalized total with multi-packs multiplied out.
type PackageSize struct {
	Value decimal.Decimal
	Unit  string
	Grams decimal.Decimal
}

// Candidate is a normalized scraped product persisted for one ingredient and
// one store. Candidates are the audit trail: every surviving raw product
// becomes a row, whether or not it is ultimately selected.
type Candidate struct {
	ID               uuid.UUID
	IngredientID     int64
	Store            Store
	ProductName      string
	ProductURL       string
	PackageSizeValue *decimal.Decimal
	PackageSizeUnit  string
	PriceNok         decimal.Decimal
	PricePerKgNok    *decimal.Decimal
}

// Observation is the single chosen candidate for an ingredient in one cycle,
// representing the recorded market price. SourceVersion carries a free-text
// provenance string (pipeline tag plus the oracle's rationale).
type Observation struct {
	ID               uuid.UUID
	IngredientID     int64
	CandidateID      uuid.UUID
	Store            Store
	ProductName      string
	ProductURL       string
	PackageSizeValue *decimal.Decimal
	PackageSizeUnit  string
	PriceNok         decimal.Decimal
	PricePerKgNok    *decimal.Decimal
	SourceVersion    string
}

// Verdict is the Selection Oracle's parsed answer. SelectedIndex is 0-based
// and nil when the oracle explicitly declines to pick any candidate.
type Verdict struct {
	SelectedIndex *int
	Rationale     string
}
