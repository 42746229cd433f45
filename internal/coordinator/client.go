package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// QueryRequest is the payload of an interactive query.
type QueryRequest struct {
	Prompt         string `json:"prompt"`
	SelectedText   string `json:"selected_text,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Task           string `json:"task,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	PageContext    string `json:"page_context,omitempty"`
}

// SummarizeRequest is the payload of a page summarization.
type SummarizeRequest struct {
	PageContext string `json:"page_context"`
	Length      string `json:"length,omitempty"` // short, medium, long
}

// RelayResponse is the success envelope returned by the relay.
type RelayResponse struct {
	OK   bool            `json:"ok"`
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// UpstreamStatusError is returned when the relay answers with a non-2xx
// status. The body is read best-effort.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Body)
}

// RelayClient performs the outbound calls to the relay service.
type RelayClient struct {
	baseURL string
	httpc   *http.Client
}

// NewRelayClient creates a client for the relay at baseURL. No timeout is
// imposed here; callers control the call lifetime through the request
// context.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		httpc:   &http.Client{},
	}
}

// Generate posts an interactive query to the relay.
func (c *RelayClient) Generate(ctx context.Context, req QueryRequest) (*RelayResponse, error) {
	return c.post(ctx, "/api/generate", req)
}

// Summarize posts a page summarization to the relay.
func (c *RelayClient) Summarize(ctx context.Context, req SummarizeRequest) (*RelayResponse, error) {
	return c.post(ctx, "/api/summarize", req)
}

func (c *RelayClient) post(ctx context.Context, path string, payload any) (*RelayResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read the error body best-effort; a failed read must not mask
		// the status classification.
		msg := "(unreadable response body)"
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil {
			msg = string(data)
		}
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	var rr RelayResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("malformed relay response: %w", err)
	}
	return &rr, nil
}
