package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

// fakeProvider returns canned completions and records the prompts it saw.
type fakeProvider struct {
	text    string
	err     error
	prompts []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(_ context.Context, prompt string, _ int) (string, any, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return "", nil, p.err
	}
	return p.text, map[string]string{"model": "fake-1"}, nil
}

func setupRelay(t *testing.T, provider Provider) *Server {
	t.Helper()
	srv := NewServer(Config{Listen: "127.0.0.1:0", MaxTokens: 256}, provider)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func postJSON(t *testing.T, srv *Server, path, body string) (*http.Response, response) {
	t.Helper()
	resp, err := http.Post(
		fmt.Sprintf("http://%s%s", srv.Addr(), path),
		"application/json",
		strings.NewReader(body),
	)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, envelope
}

func TestRelay_Generate(t *testing.T) {
	provider := &fakeProvider{text: "generated text"}
	srv := setupRelay(t, provider)

	resp, envelope := postJSON(t, srv, "/api/generate", `{"prompt":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !envelope.OK || envelope.Text != "generated text" {
		t.Errorf("envelope = %+v, want ok with text", envelope)
	}
	if envelope.Raw == nil {
		t.Error("envelope should carry the raw upstream response")
	}
}

func TestRelay_GeneratePromptIncludesSelection(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	srv := setupRelay(t, provider)

	postJSON(t, srv, "/api/generate",
		`{"task":"translate","target_language":"German","selected_text":"good morning"}`)

	if len(provider.prompts) != 1 {
		t.Fatalf("provider saw %d prompts, want 1", len(provider.prompts))
	}
	prompt := provider.prompts[0]
	if !strings.Contains(prompt, "German") {
		t.Errorf("prompt %q missing target language", prompt)
	}
	if !strings.Contains(prompt, "good morning") {
		t.Errorf("prompt %q missing selected text", prompt)
	}
}

func TestRelay_Summarize(t *testing.T) {
	provider := &fakeProvider{text: "the gist"}
	srv := setupRelay(t, provider)

	resp, envelope := postJSON(t, srv, "/api/summarize", `{"page_context":"a long page","length":"short"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !envelope.OK || envelope.Text != "the gist" {
		t.Errorf("envelope = %+v, want ok with text", envelope)
	}

	if len(provider.prompts) != 1 || !strings.Contains(provider.prompts[0], "two or three sentences") {
		t.Errorf("prompt = %q, want short-length instruction", provider.prompts)
	}
}

func TestRelay_SummarizeUnknownLengthFallsBack(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	srv := setupRelay(t, provider)

	postJSON(t, srv, "/api/summarize", `{"page_context":"page","length":"gigantic"}`)
	if len(provider.prompts) != 1 || !strings.Contains(provider.prompts[0], "one paragraph") {
		t.Errorf("prompt = %q, want medium fallback", provider.prompts)
	}
}

func TestRelay_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	srv := setupRelay(t, provider)

	resp, envelope := postJSON(t, srv, "/api/generate", `{"prompt":"hello"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if envelope.OK || !strings.Contains(envelope.Error, "quota exceeded") {
		t.Errorf("envelope = %+v, want error", envelope)
	}
}

func TestRelay_MalformedRequest(t *testing.T) {
	srv := setupRelay(t, &fakeProvider{text: "unused"})

	resp, envelope := postJSON(t, srv, "/api/generate", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if envelope.OK {
		t.Errorf("envelope = %+v, want error", envelope)
	}
}

func TestRelay_MissingFields(t *testing.T) {
	srv := setupRelay(t, &fakeProvider{text: "unused"})

	resp, _ := postJSON(t, srv, "/api/generate", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("generate status = %d, want 400", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv, "/api/summarize", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("summarize status = %d, want 400", resp.StatusCode)
	}
}

func TestRelay_MethodNotAllowed(t *testing.T) {
	srv := setupRelay(t, &fakeProvider{text: "unused"})

	resp, err := http.Get(fmt.Sprintf("http://%s/api/generate", srv.Addr()))
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestProviders_MissingCredential(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), "", "gemini-1.5-flash"); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("NewGeminiProvider error = %v, want ErrMissingCredential", err)
	}
	if _, err := NewAnthropicProvider("", "claude-sonnet-4-20250514"); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("NewAnthropicProvider error = %v, want ErrMissingCredential", err)
	}
}
