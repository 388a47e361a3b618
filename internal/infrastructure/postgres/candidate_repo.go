package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/matpris/backend/internal/domain"
)

const candidateColumns = 9

// CandidateRepo appends candidate rows, the per-cycle audit trail.
type CandidateRepo struct {
	conn *pgx.Conn
}

// NewCandidateRepo creates a new candidate repository
func NewCandidateRepo(conn *pgx.Conn) *CandidateRepo {
	return &CandidateRepo{conn: conn}
}

// SaveAll inserts all candidates in a single multi-row parameterized
// statement. Rows accumulate across re-scrapes; nothing is ever updated or
// deleted here.
func (r *CandidateRepo) SaveAll(ctx context.Context, candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(candidates))
	args := make([]any, 0, len(candidates)*candidateColumns)
	for i, c := range candidates {
		base := i * candidateColumns
		marks := make([]string, candidateColumns)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ",")+")")
		args = append(args,
			c.ID, c.IngredientID, string(c.Store), c.ProductName,
			nullableString(c.ProductURL), c.PackageSizeValue, nullableString(c.PackageSizeUnit),
			c.PriceNok, c.PricePerKgNok,
		)
	}

	query := `INSERT INTO price_candidates
		(id, ingredient_id, store, product_name, product_url,
		 package_size_value, package_size_unit, price_nok, price_per_kg_nok)
		VALUES ` + strings.Join(placeholders, ",")

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: inserting %d candidates: %v", domain.ErrPersistence, len(candidates), err)
	}
	return nil
}

// nullableString maps "" to SQL NULL
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
