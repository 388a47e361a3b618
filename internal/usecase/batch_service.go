package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matpris/backend/internal/domain"
)

// pipelineVersion tags persisted observations with the pipeline revision
// that produced them.
const pipelineVersion = "matpris-scraper/1"

// BatchServiceConfig bounds one orchestrator run
type BatchServiceConfig struct {
	BatchSize      int
	PerStoreLimit  int
	Cooldown       time.Duration
	NoMatchRecheck time.Duration
}

// BatchService pulls a bounded batch of unresolved ingredients and drives
// the extract → filter → aggregate → select → persist cycle for each one,
// strictly sequentially: the upstream sites, the shared browser session and
// the database session are all rate- or connection-sensitive.
type BatchService struct {
	ingredients  domain.IngredientRepository
	observations domain.ObservationRepository
	sources      []domain.StoreSource
	filter       *RelevanceFilter
	aggregator   *CandidateAggregator
	oracle       domain.SelectionOracle
	cfg          BatchServiceConfig

	mu       sync.Mutex
	progress Progress
}

// Progress is a live snapshot of the running batch, served by the optional
// status endpoint.
type Progress struct {
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Matched   int    `json:"matched"`
	NoMatch   int    `json:"no_match"`
	Errors    int    `json:"errors"`
	Current   string `json:"current,omitempty"`
}

// NewBatchService creates a new batch orchestrator
func NewBatchService(
	ingredients domain.IngredientRepository,
	observations domain.ObservationRepository,
	sources []domain.StoreSource,
	filter *RelevanceFilter,
	aggregator *CandidateAggregator,
	oracle domain.SelectionOracle,
	cfg BatchServiceConfig,
) *BatchService {
	return &BatchService{
		ingredients:  ingredients,
		observations: observations,
		sources:      sources,
		filter:       filter,
		aggregator:   aggregator,
		oracle:       oracle,
		cfg:          cfg,
	}
}

// Progress returns a copy of the current run progress.
func (s *BatchService) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Run processes one batch of pending ingredients and returns the run
// summary. Per-ingredient failures are recorded and skipped over; only a
// failure to select the batch itself is run-fatal.
func (s *BatchService) Run(ctx context.Context) (domain.RunSummary, error) {
	start := time.Now()

	pending, err := s.ingredients.FindPending(ctx, s.cfg.BatchSize, s.cfg.Cooldown, s.cfg.NoMatchRecheck)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("selecting pending batch: %w", err)
	}
	log.Printf("[BATCH] %d pending ingredients (batch size %d)", len(pending), s.cfg.BatchSize)

	s.mu.Lock()
	s.progress = Progress{Total: len(pending)}
	s.mu.Unlock()

	summary := domain.RunSummary{}
	for _, ingredient := range pending {
		s.setCurrent(ingredient.Name)

		outcome := s.processSafely(ctx, ingredient)

		summary.Processed++
		switch outcome {
		case domain.OutcomeMatched:
			summary.Matched++
		case domain.OutcomeNoMatch:
			summary.NoMatch++
		default:
			summary.Errors++
		}
		s.recordProgress(outcome)
	}

	s.setCurrent("")
	summary.Duration = time.Since(start)
	return summary, nil
}

// processSafely is the per-ingredient error boundary: any error or panic in
// a cycle is logged with ingredient context and converted into an error
// outcome so the orchestrator proceeds to the next ingredient.
func (s *BatchService) processSafely(ctx context.Context, ingredient domain.Ingredient) (outcome domain.CycleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[BATCH] Panic processing ingredient %d (%q): %v", ingredient.ID, ingredient.Name, r)
			outcome = domain.OutcomeError
			s.markScraped(ctx, ingredient, nil)
		}
	}()

	result, err := s.processOne(ctx, ingredient)
	if err != nil {
		log.Printf("[BATCH] Ingredient %d (%q) failed: %v", ingredient.ID, ingredient.Name, err)
		// scrape_result stays NULL so the ingredient remains retry-eligible,
		// but the timestamp is stamped to prevent re-selection this run.
		s.markScraped(ctx, ingredient, nil)
		return domain.OutcomeError
	}

	s.markScraped(ctx, ingredient, &result)
	if result == domain.ScrapeResultMatched {
		return domain.OutcomeMatched
	}
	return domain.OutcomeNoMatch
}

// processOne runs a single ingredient cycle and returns its terminal scrape
// result. Errors are returned for the boundary to record.
func (s *BatchService) processOne(ctx context.Context, ingredient domain.Ingredient) (domain.ScrapeResult, error) {
	perStore := make([]StoreProducts, 0, len(s.sources))
	for _, source := range s.sources {
		products, err := source.Search(ctx, ingredient.Name, s.cfg.PerStoreLimit)
		if err != nil {
			// A failing source degrades to an empty list, never aborts.
			log.Printf("[BATCH] Store %s failed for %q: %v", source.Store(), ingredient.Name, err)
			products = nil
		}
		perStore = append(perStore, StoreProducts{Store: source.Store(), Products: products})
	}

	// Filter across all stores at once: the fail-open rule is judged on the
	// combined set, not per store slice.
	perStore = s.filter.FilterStores(perStore, ingredient.Name)

	candidates, err := s.aggregator.Aggregate(ctx, ingredient, perStore)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		log.Printf("[BATCH] No candidates for %q across all stores", ingredient.Name)
		return domain.ScrapeResultNoMatch, nil
	}

	verdict, err := s.oracle.Select(ctx, ingredient.Name, candidates)
	if err != nil {
		return "", err
	}
	if verdict.SelectedIndex == nil {
		log.Printf("[BATCH] Oracle declined all %d candidates for %q: %s", len(candidates), ingredient.Name, verdict.Rationale)
		return domain.ScrapeResultNoMatch, nil
	}

	chosen := candidates[*verdict.SelectedIndex]
	obs := domain.Observation{
		ID:               uuid.New(),
		IngredientID:     ingredient.ID,
		CandidateID:      chosen.ID,
		Store:            chosen.Store,
		ProductName:      chosen.ProductName,
		ProductURL:       chosen.ProductURL,
		PackageSizeValue: chosen.PackageSizeValue,
		PackageSizeUnit:  chosen.PackageSizeUnit,
		PriceNok:         chosen.PriceNok,
		PricePerKgNok:    chosen.PricePerKgNok,
		SourceVersion:    fmt.Sprintf("%s: %s", pipelineVersion, verdict.Rationale),
	}
	if err := s.observations.Save(ctx, obs); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	log.Printf("[BATCH] Matched %q -> %s %q at %s NOK", ingredient.Name, chosen.Store, chosen.ProductName, chosen.PriceNok.StringFixed(2))
	return domain.ScrapeResultMatched, nil
}

// markScraped stamps the bookkeeping columns; a failure here is logged but
// does not change the cycle outcome, since the cycle's own result already
// stands.
func (s *BatchService) markScraped(ctx context.Context, ingredient domain.Ingredient, result *domain.ScrapeResult) {
	if err := s.ingredients.MarkScraped(ctx, ingredient.ID, result, time.Now().UTC()); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[BATCH] Failed to stamp ingredient %d: %v", ingredient.ID, err)
	}
}

func (s *BatchService) setCurrent(name string) {
	s.mu.Lock()
	s.progress.Current = name
	s.mu.Unlock()
}

func (s *BatchService) recordProgress(outcome domain.CycleOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Processed++
	switch outcome {
	case domain.OutcomeMatched:
		s.progress.Matched++
	case domain.OutcomeNoMatch:
		s.progress.NoMatch++
	default:
		s.progress.Errors++
	}
}
