// Package postgres implements the pipeline's repositories on a single
// pgx connection held open for the duration of one batch run.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Connect opens the single database session used for the whole run.
// The caller owns the connection and must close it on every exit path.
func Connect(ctx context.Context, dsn string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return conn, nil
}
