package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matpris/backend/internal/domain"
)

func testCandidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		perKg := decimal.NewFromInt(int64(100 + 10*i))
		out = append(out, domain.Candidate{
			ID:            uuid.New(),
			IngredientID:  1,
			Store:         domain.StoreOda,
			ProductName:   fmt.Sprintf("Kyllingfilet %d", i+1),
			PriceNok:      decimal.RequireFromString("79.90"),
			PricePerKgNok: &perKg,
		})
	}
	return out
}

// verdictServer responds to every chat completion with the given verdict
// object serialized as the assistant message content.
func verdictServer(t *testing.T, verdictJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": verdictJSON}},
			},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 25},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("valid verdict converts to zero-based index", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": 2, "rationale": "plain fillet at a typical price"}`)
		defer srv.Close()

		verdict, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(3))

		require.NoError(t, err)
		require.NotNil(t, verdict.SelectedIndex)
		assert.Equal(t, 1, *verdict.SelectedIndex)
		assert.Equal(t, "plain fillet at a typical price", verdict.Rationale)
	})

	t.Run("null selection is a valid decline", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": null, "rationale": "all candidates are processed variants"}`)
		defer srv.Close()

		verdict, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(2))

		require.NoError(t, err)
		assert.Nil(t, verdict.SelectedIndex)
		assert.NotEmpty(t, verdict.Rationale)
	})

	t.Run("position zero is out of range", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": 0, "rationale": "off by one"}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(2))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("position past the list is out of range", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": 4, "rationale": "imaginary candidate"}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(3))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("unknown fields violate the contract", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": 1, "rationale": "fine", "selected_indexes": [1, 2]}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(3))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("omitted selected_index violates the contract", func(t *testing.T) {
		// Declining must be an explicit null, never a missing key.
		srv := verdictServer(t, `{"rationale": "nothing fits"}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(2))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("non-integer selected_index violates the contract", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": "2", "rationale": "stringly typed"}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(3))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("missing rationale violates the contract", func(t *testing.T) {
		srv := verdictServer(t, `{"selected_index": 1, "rationale": ""}`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(1))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("non-JSON content violates the contract", func(t *testing.T) {
		srv := verdictServer(t, `I would pick the first one.`)
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(1))

		assert.ErrorIs(t, err, domain.ErrOracleVerdict)
	})

	t.Run("non-200 status is a service failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := NewClient("test-key", srv.URL, "test-model").Select(ctx, "kyllingfilet", testCandidates(1))

		assert.ErrorIs(t, err, domain.ErrOracleFailure)
	})

	t.Run("empty candidate list is rejected locally", func(t *testing.T) {
		_, err := NewClient("test-key", "http://127.0.0.1:0", "test-model").Select(ctx, "kyllingfilet", nil)
		assert.ErrorIs(t, err, domain.ErrNoCandidates)
	})
}

func TestBuildBrief(t *testing.T) {
	candidates := testCandidates(2)
	candidates[1].Store = domain.StoreMeny
	candidates[1].PricePerKgNok = nil

	brief := buildBrief("kyllingfilet", candidates)

	assert.Contains(t, brief, "Ingredient: kyllingfilet")
	assert.Contains(t, brief, "[1] oda: Kyllingfilet 1 at 79.90 NOK (100.00 kr/kg)")
	assert.Contains(t, brief, "[2] meny: Kyllingfilet 2 at 79.90 NOK\n")
}
