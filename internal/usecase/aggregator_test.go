package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matpris/backend/internal/domain"
)

type fakeCandidateRepo struct {
	saved   [][]domain.Candidate
	saveErr error
}

func (f *fakeCandidateRepo) SaveAll(_ context.Context, candidates []domain.Candidate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, candidates)
	return nil
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	ingredient := domain.Ingredient{ID: 7, Name: "kyllingfilet"}

	newAggregator := func(repo *fakeCandidateRepo) *CandidateAggregator {
		return NewCandidateAggregator(repo, NewPriceNormalizer(false))
	}

	t.Run("preserves store-partitioned order", func(t *testing.T) {
		repo := &fakeCandidateRepo{}
		agg := newAggregator(repo)

		perStore := []StoreProducts{
			{Store: domain.StoreOda, Products: []domain.RawProduct{
				{Title: "Kyllingfilet 500g", Price: decimal.RequireFromString("79.90"), PackageSize: "500g"},
				{Title: "Kyllinglår 800g", Price: decimal.RequireFromString("59.90"), PackageSize: "800g"},
			}},
			{Store: domain.StoreMeny, Products: []domain.RawProduct{
				{Title: "Kyllingfilet naturell", Price: decimal.RequireFromString("89.90")},
			}},
		}

		candidates, err := agg.Aggregate(ctx, ingredient, perStore)
		require.NoError(t, err)
		require.Len(t, candidates, 3)

		// The oracle indexes into exactly this concatenation.
		assert.Equal(t, domain.StoreOda, candidates[0].Store)
		assert.Equal(t, domain.StoreOda, candidates[1].Store)
		assert.Equal(t, domain.StoreMeny, candidates[2].Store)
		assert.Equal(t, "Kyllingfilet 500g", candidates[0].ProductName)

		for _, c := range candidates {
			assert.Equal(t, int64(7), c.IngredientID)
			assert.NotEqual(t, "", c.ID.String())
		}
	})

	t.Run("persists before returning", func(t *testing.T) {
		repo := &fakeCandidateRepo{}
		agg := newAggregator(repo)

		candidates, err := agg.Aggregate(ctx, ingredient, []StoreProducts{
			{Store: domain.StoreOda, Products: []domain.RawProduct{
				{Title: "Kyllingfilet 500g", Price: decimal.RequireFromString("79.90"), PackageSize: "500g"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, repo.saved, 1)
		assert.Equal(t, candidates, repo.saved[0])
	})

	t.Run("derives package size and price per kg", func(t *testing.T) {
		repo := &fakeCandidateRepo{}
		agg := newAggregator(repo)

		candidates, err := agg.Aggregate(ctx, ingredient, []StoreProducts{
			{Store: domain.StoreOda, Products: []domain.RawProduct{
				{Title: "Kyllingfilet 500g", Price: decimal.RequireFromString("79.90"), PackageSize: "500g"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, candidates, 1)

		c := candidates[0]
		require.NotNil(t, c.PackageSizeValue)
		assert.True(t, c.PackageSizeValue.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, "g", c.PackageSizeUnit)
		require.NotNil(t, c.PricePerKgNok)
		assert.True(t, c.PricePerKgNok.Equal(decimal.RequireFromString("159.8")))
	})

	t.Run("empty input is a no-match signal, nothing saved", func(t *testing.T) {
		repo := &fakeCandidateRepo{}
		agg := newAggregator(repo)

		candidates, err := agg.Aggregate(ctx, ingredient, []StoreProducts{
			{Store: domain.StoreOda}, {Store: domain.StoreMeny},
		})
		require.NoError(t, err)
		assert.Empty(t, candidates)
		assert.Empty(t, repo.saved)
	})

	t.Run("propagates persistence failure", func(t *testing.T) {
		repo := &fakeCandidateRepo{saveErr: errors.New("connection reset")}
		agg := newAggregator(repo)

		_, err := agg.Aggregate(ctx, ingredient, []StoreProducts{
			{Store: domain.StoreOda, Products: []domain.RawProduct{
				{Title: "Kyllingfilet 500g", Price: decimal.RequireFromString("79.90")},
			}},
		})
		assert.Error(t, err)
	})
}
