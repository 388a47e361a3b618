package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/matpris/backend/internal/domain"
)

// IngredientRepo reads pending ingredients and writes back scrape
// bookkeeping on the externally owned ingredient catalog.
type IngredientRepo struct {
	conn *pgx.Conn
}

// NewIngredientRepo creates a new ingredient repository
func NewIngredientRepo(conn *pgx.Conn) *IngredientRepo {
	return &IngredientRepo{conn: conn}
}

// FindPending selects the batch for one run. Eligibility:
//   - never processed, or
//   - last cycle errored (scrape_result NULL with a stamp), retried without
//     any cooldown, or
//   - matched longer than cooldown ago (price refresh), or
//   - no_match longer than the annual recheck window ago.
//
// Never-processed ingredients come first, then oldest-processed first.
func (r *IngredientRepo) FindPending(ctx context.Context, limit int, cooldown, noMatchRecheck time.Duration) ([]domain.Ingredient, error) {
	now := time.Now().UTC()
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, last_scraped_at, scrape_result
		FROM ingredients
		WHERE last_scraped_at IS NULL
		   OR scrape_result IS NULL
		   OR (scrape_result = 'matched' AND last_scraped_at < $1)
		   OR (scrape_result = 'no_match' AND last_scraped_at < $2)
		ORDER BY last_scraped_at ASC NULLS FIRST
		LIMIT $3`,
		now.Add(-cooldown), now.Add(-noMatchRecheck), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending ingredients: %w", err)
	}
	defer rows.Close()

	var out []domain.Ingredient
	for rows.Next() {
		var ing domain.Ingredient
		var result *string
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.LastScrapedAt, &result); err != nil {
			return nil, fmt.Errorf("scanning ingredient row: %w", err)
		}
		if result != nil {
			sr := domain.ScrapeResult(*result)
			ing.ScrapeResult = &sr
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// MarkScraped stamps last_scraped_at and sets scrape_result. A nil result
// writes NULL, explicitly distinct from no_match, so an errored ingredient
// stays retry-eligible.
func (r *IngredientRepo) MarkScraped(ctx context.Context, ingredientID int64, result *domain.ScrapeResult, at time.Time) error {
	var value *string
	if result != nil {
		s := string(*result)
		value = &s
	}
	tag, err := r.conn.Exec(ctx,
		`UPDATE ingredients SET last_scraped_at = $1, scrape_result = $2 WHERE id = $3`,
		at, value, ingredientID,
	)
	if err != nil {
		return fmt.Errorf("%w: marking ingredient %d: %v", domain.ErrPersistence, ingredientID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: ingredient %d not found", domain.ErrPersistence, ingredientID)
	}
	return nil
}
