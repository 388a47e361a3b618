package domain

import (
	"context"
	"time"
)

// IngredientRepository reads pending ingredients from the external catalog
// and writes back per-cycle scrape bookkeeping.
type IngredientRepository interface {
	// FindPending returns up to limit ingredients eligible for processing:
	// never-processed first, then oldest-processed first. An ingredient is
	// eligible when it was never processed, its last cycle errored, it was
	// matched longer than cooldown ago, or it was a no-match longer than
	// noMatchRecheck ago.
	FindPending(ctx context.Context, limit int, cooldown, noMatchRecheck time.Duration) ([]Ingredient, error)

	// MarkScraped stamps last_scraped_at and sets scrape_result. A nil result
	// records an errored cycle and keeps the ingredient retry-eligible.
	MarkScraped(ctx context.Context, ingredientID int64, result *ScrapeResult, at time.Time) error
}

// CandidateRepository persists the per-cycle audit trail. Rows are
// append-only and accumulate across re-scrapes.
type CandidateRepository interface {
	// SaveAll inserts all candidates in one multi-row statement and must
	// complete before any selection is attempted.
	SaveAll(ctx context.Context, candidates []Candidate) error
}

// ObservationRepository persists the chosen price observation.
type ObservationRepository interface {
	Save(ctx context.Context, obs Observation) error
}

// StoreSource searches one retail site by free text and returns extracted
// raw products, at most limit entries, all with a positive price. A failing
// source returns an empty list and an error the caller may log and ignore.
type StoreSource interface {
	Store() Store
	Search(ctx context.Context, query string, limit int) ([]RawProduct, error)
}

// SelectionOracle judges an aggregated candidate list and picks at most one
// representative product, or explicitly declines.
type SelectionOracle interface {
	Select(ctx context.Context, ingredientName string, candidates []Candidate) (Verdict, error)
}
