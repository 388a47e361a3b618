package domain

import "errors"

var (
	// ErrNoCandidates is returned when no products survive extraction and
	// filtering for an ingredient. This is a legitimate no-match outcome,
	// not a failure.
	ErrNoCandidates = errors.New("no candidates for ingredient")

	// ErrOracleVerdict is returned when the oracle responds with a malformed
	// or out-of-range verdict.
	ErrOracleVerdict = errors.New("invalid oracle verdict")

	// ErrOracleFailure is returned when the oracle request itself fails
	// (network error, timeout, non-200 status).
	ErrOracleFailure = errors.New("oracle request failed")

	// ErrPersistence is returned when a database write fails.
	ErrPersistence = errors.New("database write failed")

	// ErrStoreUnavailable is returned when a store's search page cannot be
	// loaded or parsed. Callers degrade to an empty product list.
	ErrStoreUnavailable = errors.New("store source unavailable")
)
