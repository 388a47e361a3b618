package domain

import "time"

// ScrapeResult is the terminal outcome of one ingredient processing cycle.
// A NULL result together with a non-NULL LastScrapedAt means the last cycle
// errored and the ingredient is eligible for retry.
type ScrapeResult string

const (
	ScrapeResultMatched ScrapeResult = "matched"
	ScrapeResultNoMatch ScrapeResult = "no_match"
)

// Ingredient is a catalog entry lacking price data. The catalog itself is
// owned externally; this pipeline only reads id/name and writes back the
// scrape bookkeeping columns.
type Ingredient struct {
	ID            int64
	Name          string
	LastScrapedAt *time.Time
	ScrapeResult  *ScrapeResult
}

// CycleOutcome records how one ingredient's processing cycle ended.
type CycleOutcome string

const (
	OutcomeMatched CycleOutcome = "matched"
	OutcomeNoMatch CycleOutcome = "no_match"
	OutcomeError   CycleOutcome = "error"
)

// RunSummary aggregates per-ingredient outcomes for one batch run.
// Only hard errors drive the process failure signal; a run full of
// legitimate no-matches is a successful run.
type RunSummary struct {
	Processed int           `json:"processed"`
	Matched   int           `json:"matched"`
	NoMatch   int           `json:"no_match"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"-"`
}

// Failed reports whether the run should exit non-zero.
func (s RunSummary) Failed() bool {
	return s.Errors > 0
}
