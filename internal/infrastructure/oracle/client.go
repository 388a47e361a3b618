// Package oracle implements the selection oracle on an OpenAI-compatible
// chat-completions endpoint with strictly-structured JSON output.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/matpris/backend/internal/domain"
)

// selectionPolicy is the fixed judging brief. Ranked criteria, most
// important first.
const selectionPolicy = `You pick the single retail product that best represents the market price of a recipe ingredient. Rules, in priority order:
1. Closest match to the ingredient itself. A different animal species is never acceptable, even when no exact name match exists.
2. Prefer the least processed form (raw cut over marinated, sliced or breaded).
3. Prefer a standard consumer package size over bulk or miniature packs.
4. Prefer representative pricing: neither the cheapest nor the priciest option, reflecting what an ordinary shopper would buy.
If no candidate is a valid match for the ingredient, select nothing.
Respond with a JSON object: {"selected_index": <1-based position or null>, "rationale": "<one short sentence>"}.`

// Client calls the oracle service. The HTTP client timeout bounds every
// selection call.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewClient creates a new oracle client
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat responseFmt   `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// verdictPayload is the strict verdict contract. The index is kept raw so a
// missing key can be told apart from an explicit null: declining must be
// stated, not implied by omission. Anything else in the object is a contract
// violation.
type verdictPayload struct {
	SelectedIndex json.RawMessage `json:"selected_index"`
	Rationale     string          `json:"rationale"`
}

// Select sends the candidate brief and selection policy to the oracle and
// returns its validated verdict. A nil SelectedIndex is a deliberate,
// correct "nothing matches" answer; malformed or out-of-range responses
// return ErrOracleVerdict.
func (c *Client) Select(ctx context.Context, ingredientName string, candidates []domain.Candidate) (domain.Verdict, error) {
	if len(candidates) == 0 {
		return domain.Verdict{}, domain.ErrNoCandidates
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: selectionPolicy},
			{Role: "user", Content: buildBrief(ingredientName, candidates)},
		},
		Temperature:    0,
		ResponseFormat: responseFmt{Type: "json_object"},
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: marshaling request: %v", domain.ErrOracleFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return domain.Verdict{}, fmt.Errorf("%w: status %d: %s", domain.ErrOracleFailure, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: decoding response: %v", domain.ErrOracleFailure, err)
	}
	if len(parsed.Choices) == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: empty choices", domain.ErrOracleVerdict)
	}

	// Token usage is logged for traceability, never used for control flow.
	log.Printf("[ORACLE] %q: %d candidates, tokens prompt=%d completion=%d",
		ingredientName, len(candidates), parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)

	return parseVerdict(parsed.Choices[0].Message.Content, len(candidates))
}

// parseVerdict decodes and validates the structured verdict. The returned
// index is converted to 0-based.
func parseVerdict(content string, candidateCount int) (domain.Verdict, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()

	var payload verdictPayload
	if err := dec.Decode(&payload); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v in %q", domain.ErrOracleVerdict, err, truncate(content, 200))
	}
	if payload.Rationale == "" {
		return domain.Verdict{}, fmt.Errorf("%w: missing rationale", domain.ErrOracleVerdict)
	}
	if len(payload.SelectedIndex) == 0 {
		return domain.Verdict{}, fmt.Errorf("%w: missing selected_index", domain.ErrOracleVerdict)
	}

	verdict := domain.Verdict{Rationale: payload.Rationale}
	if string(payload.SelectedIndex) != "null" {
		var pos int
		if err := json.Unmarshal(payload.SelectedIndex, &pos); err != nil {
			return domain.Verdict{}, fmt.Errorf("%w: non-integer selected_index %s", domain.ErrOracleVerdict, truncate(string(payload.SelectedIndex), 50))
		}
		if pos < 1 || pos > candidateCount {
			return domain.Verdict{}, fmt.Errorf("%w: position %d out of range [1,%d]", domain.ErrOracleVerdict, pos, candidateCount)
		}
		idx := pos - 1
		verdict.SelectedIndex = &idx
	}
	return verdict, nil
}

// buildBrief renders the numbered candidate list the verdict indexes into.
// Order must match the aggregator's store-partitioned concatenation exactly.
func buildBrief(ingredientName string, candidates []domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ingredient: %s\n\nCandidates:\n", ingredientName)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s: %s at %s NOK", i+1, c.Store, c.ProductName, c.PriceNok.StringFixed(2))
		if c.PricePerKgNok != nil {
			fmt.Fprintf(&b, " (%s kr/kg)", c.PricePerKgNok.StringFixed(2))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
