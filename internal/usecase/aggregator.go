package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matpris/backend/internal/domain"
)

// StoreProducts is one store's filtered extraction result for an ingredient.
type StoreProducts struct {
	Store    domain.Store
	Products []domain.RawProduct
}

// CandidateAggregator merges normalized products from all stores into one
// ordered candidate list per ingredient and persists it durably before any
// selection decision is made.
type CandidateAggregator struct {
	candidates domain.CandidateRepository
	normalizer *PriceNormalizer
}

// NewCandidateAggregator creates a new candidate aggregator
func NewCandidateAggregator(candidates domain.CandidateRepository, normalizer *PriceNormalizer) *CandidateAggregator {
	return &CandidateAggregator{
		candidates: candidates,
		normalizer: normalizer,
	}
}

// Aggregate converts each surviving raw product into a candidate and saves
// all of them in one bulk insert. Store-partitioned order is preserved: the
// oracle's verdict references candidates by 1-based position in exactly this
// concatenation, and store attribution is derived from it.
//
// An empty result is a valid no-match signal, not an error.
func (a *CandidateAggregator) Aggregate(ctx context.Context, ingredient domain.Ingredient, perStore []StoreProducts) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, sp := range perStore {
		for _, p := range sp.Products {
			candidates = append(candidates, a.toCandidate(ingredient, sp.Store, p))
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	// Persist before selection so the audit trail exists even if the
	// oracle call later fails.
	if err := a.candidates.SaveAll(ctx, candidates); err != nil {
		return nil, fmt.Errorf("saving %d candidates for ingredient %d: %w", len(candidates), ingredient.ID, err)
	}
	return candidates, nil
}

// toCandidate normalizes one raw product into a persisted candidate
func (a *CandidateAggregator) toCandidate(ingredient domain.Ingredient, store domain.Store, p domain.RawProduct) domain.Candidate {
	c := domain.Candidate{
		ID:           uuid.New(),
		IngredientID: ingredient.ID,
		Store:        store,
		ProductName:  p.Title,
		ProductURL:   p.URL,
		PriceNok:     p.Price,
	}
	if size := ParsePackageSize(p.PackageSize); size != nil {
		c.PackageSizeValue = &size.Value
		c.PackageSizeUnit = size.Unit
	}
	c.PricePerKgNok = a.normalizer.PricePerKg(p)
	return c
}
