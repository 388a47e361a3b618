package usecase

import (
	"log"
	"regexp"
	"strings"

	"github.com/matpris/backend/internal/domain"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\wæøåÆØÅ\s]`)

// categoryMarkers maps a coarse category stem to the token prefixes that
// identify it. Tokens are matched by prefix so compound Norwegian product
// names ("lammefilet", "reinsdyrsteik") resolve to their species stem.
var categoryMarkers = map[string][]string{
	"rein":    {"rein", "reinsdyr", "villrein", "finnbiff", "caribou"},
	"lam":     {"lam", "lamme", "fåre", "fårikål"},
	"storfe":  {"storfe", "okse", "biff", "kalv", "entrecot", "mørbrad"},
	"svin":    {"svin", "gris", "ribbe", "skinke"},
	"kylling": {"kylling", "høne", "hønse", "broiler"},
	"kalkun":  {"kalkun"},
	"fisk":    {"fisk", "laks", "torsk", "ørret", "sei", "makrell", "sild"},
	"hjort":   {"hjort", "elg", "rådyr"},
}

// conflictingStems is the mutual-exclusion table: a product whose title
// carries any stem listed here for the ingredient's primary category is a
// different animal species and is vetoed outright.
var conflictingStems = map[string][]string{
	"rein":    {"lam", "storfe", "svin", "kylling", "kalkun", "fisk", "hjort"},
	"lam":     {"rein", "storfe", "svin", "kylling", "kalkun", "fisk", "hjort"},
	"storfe":  {"rein", "lam", "svin", "kylling", "kalkun", "fisk", "hjort"},
	"svin":    {"rein", "lam", "storfe", "kylling", "kalkun", "fisk", "hjort"},
	"kylling": {"rein", "lam", "storfe", "svin", "kalkun", "fisk", "hjort"},
	"kalkun":  {"rein", "lam", "storfe", "svin", "kylling", "fisk", "hjort"},
	"fisk":    {"rein", "lam", "storfe", "svin", "kylling", "kalkun", "hjort"},
	"hjort":   {"rein", "lam", "storfe", "svin", "kylling", "kalkun", "fisk"},
}

// stemOrder keeps marker lookup deterministic
var stemOrder = []string{"rein", "lam", "storfe", "svin", "kylling", "kalkun", "fisk", "hjort"}

// RelevanceFilter rejects raw products whose inferred category conflicts
// with the ingredient's, before any candidates are persisted or judged.
// It is a cheap pre-filter: it only removes unambiguous mismatches and
// never scores or orders the remaining items.
type RelevanceFilter struct {
	enableDebugLogging bool
}

// NewRelevanceFilter creates a new relevance filter
func NewRelevanceFilter(enableDebugLogging bool) *RelevanceFilter {
	return &RelevanceFilter{enableDebugLogging: enableDebugLogging}
}

// FilterStores removes products whose title contains a category stem
// conflicting with the ingredient's primary category. The fail-open rule is
// judged on the combined result across all stores: only when every product
// from every store conflicts are the original lists restored. A single store
// carrying nothing but wrong-species products comes back empty as long as
// another store kept something, so downstream judgment still sees a
// non-empty candidate set without the vetoed species in it.
func (f *RelevanceFilter) FilterStores(perStore []StoreProducts, ingredientName string) []StoreProducts {
	primary := primaryCategory(ingredientName)
	if primary == "" {
		return perStore
	}
	conflicts := conflictingStems[primary]
	if len(conflicts) == 0 {
		return perStore
	}

	total, kept := 0, 0
	out := make([]StoreProducts, len(perStore))
	for i, sp := range perStore {
		out[i] = StoreProducts{Store: sp.Store, Products: f.keep(sp.Products, ingredientName, conflicts)}
		total += len(sp.Products)
		kept += len(out[i].Products)
	}

	// Fail-open: never hand downstream an empty combined set when the
	// stores returned something.
	if kept == 0 && total > 0 {
		log.Printf("[FILTER] All %d products conflicted for %q, failing open", total, ingredientName)
		return perStore
	}
	return out
}

// keep applies the hard veto to one store's list. An empty result is allowed
// here; the fail-open decision belongs to the caller's combined view.
func (f *RelevanceFilter) keep(products []domain.RawProduct, ingredientName string, conflicts []string) []domain.RawProduct {
	kept := make([]domain.RawProduct, 0, len(products))
	for _, p := range products {
		if stem := conflictingStemIn(p.Title, conflicts); stem != "" {
			if f.enableDebugLogging {
				log.Printf("[FILTER] Rejecting %q for %q (conflicting category %q)", p.Title, ingredientName, stem)
			}
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// primaryCategory returns the category stem of the first stemmed keyword in
// the ingredient name, or "" when no token maps to a known category.
func primaryCategory(ingredientName string) string {
	for _, token := range categoryTokens(ingredientName) {
		if stem := stemOf(token); stem != "" {
			return stem
		}
	}
	return ""
}

// categoryTokens splits a name into lowercase words longer than two runes
func categoryTokens(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) > 2 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// stemOf maps a single token to its category stem via prefix markers
func stemOf(token string) string {
	for _, stem := range stemOrder {
		for _, marker := range categoryMarkers[stem] {
			if strings.HasPrefix(token, marker) {
				return stem
			}
		}
	}
	return ""
}

// conflictingStemIn returns the first conflicting stem found in the title,
// or "" when the title carries none of them.
func conflictingStemIn(title string, conflicts []string) string {
	for _, token := range categoryTokens(title) {
		stem := stemOf(token)
		if stem == "" {
			continue
		}
		for _, c := range conflicts {
			if stem == c {
				return stem
			}
		}
	}
	return ""
}
