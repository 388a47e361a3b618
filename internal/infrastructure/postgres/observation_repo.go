package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/matpris/backend/internal/domain"
)

// ObservationRepo appends chosen price observations.
type ObservationRepo struct {
	conn *pgx.Conn
}

// NewObservationRepo creates a new observation repository
func NewObservationRepo(conn *pgx.Conn) *ObservationRepo {
	return &ObservationRepo{conn: conn}
}

// Save inserts one observation referencing the candidate chosen this cycle.
func (r *ObservationRepo) Save(ctx context.Context, obs domain.Observation) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO price_observations
			(id, ingredient_id, candidate_id, store, product_name, product_url,
			 package_size_value, package_size_unit, price_nok, price_per_kg_nok, source_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		obs.ID, obs.IngredientID, obs.CandidateID, string(obs.Store), obs.ProductName,
		nullableString(obs.ProductURL), obs.PackageSizeValue, nullableString(obs.PackageSizeUnit),
		obs.PriceNok, obs.PricePerKgNok, obs.SourceVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting observation for ingredient %d: %v", domain.ErrPersistence, obs.IngredientID, err)
	}
	return nil
}
