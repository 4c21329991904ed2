// Package openrouter implements the relevance query against an
// OpenRouter-compatible chat-completions endpoint. The model receives indexed
// unit text and must answer with index ranges; anything loosely structured is
// validated at this boundary and never propagated further.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ivanshev/segcut/internal/ports"
)

const (
	requestTimeout = 90 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
	initialBackoff    = 500 * time.Millisecond
)

type Adapter struct {
	key        string
	model      string
	baseURL    string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

func New(apiKey, model, baseURL string, logger *slog.Logger) *Adapter {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		key:        apiKey,
		model:      model,
		baseURL:    normalizeBaseURL(baseURL),
		maxRetries: DefaultMaxRetries,
		client:     &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// QueryError is a transport-level failure. Server errors and timeouts are
// retryable; client errors are permanent.
type QueryError struct {
	StatusCode int
	Body       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("relevance query failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *QueryError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// QueryRelevance sends the indexed units and prompt, with a bounded retry
// loop and doubling backoff. Returned index ranges are validated against the
// unit table; invalid indexes are dropped with a warning, never clamped.
func (a *Adapter) QueryRelevance(ctx context.Context, units []ports.IndexedUnit, prompt string) ([]ports.IndexRange, error) {
	if len(units) == 0 {
		return nil, nil
	}

	body, err := a.buildRequest(units, prompt)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			a.logger.Warn("relevance query retry",
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
				"error", redactSecrets(lastErr.Error(), a.key),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		ranges, err := a.attempt(ctx, body, len(units))
		if err == nil {
			return ranges, nil
		}
		lastErr = err

		var qe *QueryError
		if errors.As(err, &qe) && !qe.IsRetryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (a *Adapter) buildRequest(units []ports.IndexedUnit, prompt string) ([]byte, error) {
	indexed, err := json.Marshal(map[string]any{
		"indexed_text": units,
		"prompt":       prompt,
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": buildPrompt(indexed)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name": "segcut_relevance",
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ranges": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"start_index": map[string]any{"type": "integer"},
									"end_index":   map[string]any{"type": "integer"},
									"relevance":   map[string]any{"type": "number"},
								},
								"required": []string{"start_index", "end_index"},
							},
						},
					},
					"required": []string{"ranges"},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func buildPrompt(indexedJSON []byte) string {
	return "You are given transcript units as {index, text} pairs and a topic prompt. " +
		"Select the unit ranges most relevant to the prompt (or the most significant ranges when the prompt is empty). " +
		"Answer with strictly valid JSON matching the schema: ranges of start_index/end_index (inclusive, referring to the given indexes) " +
		"plus an optional relevance from 1 to 10. Never output timestamps or seconds, only indexes.\n\nInput JSON:\n" + string(indexedJSON)
}

func (a *Adapter) attempt(ctx context.Context, body []byte, unitCount int) ([]ports.IndexRange, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, &QueryError{StatusCode: http.StatusGatewayTimeout, Body: fmt.Sprintf("timeout after %s (model=%s)", requestTimeout, a.model)}
		}
		return nil, &QueryError{StatusCode: http.StatusBadGateway, Body: redactSecrets(err.Error(), a.key)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &QueryError{StatusCode: resp.StatusCode, Body: truncate(redactSecrets(string(rb), a.key), 400)}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, errors.New("empty choices in model response")
	}

	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	clean, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}

	var out struct {
		Ranges []ports.IndexRange `json:"ranges"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("malformed ranges payload: %w", err)
	}
	return a.validRanges(out.Ranges, unitCount), nil
}

// validRanges drops every range whose indexes fall outside the unit table.
// Dropping (instead of clamping) keeps an invalid answer from silently
// changing meaning.
func (a *Adapter) validRanges(ranges []ports.IndexRange, unitCount int) []ports.IndexRange {
	out := make([]ports.IndexRange, 0, len(ranges))
	for _, r := range ranges {
		if r.StartIndex < 0 || r.EndIndex >= unitCount || r.EndIndex < r.StartIndex {
			a.logger.Warn("dropping out-of-range model candidate",
				"start_index", r.StartIndex,
				"end_index", r.EndIndex,
				"unit_count", unitCount,
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the first JSON object found.
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}

	return "", fmt.Errorf("could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
