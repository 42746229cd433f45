package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/pagelens/pagelens/internal/debug"
)

// Config holds relay server configuration.
type Config struct {
	// Listen is the address the relay binds to.
	Listen string
	// MaxTokens caps the upstream completion length.
	MaxTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:    "127.0.0.1:8475",
		MaxTokens: 1024,
	}
}

// response is the envelope for every relay reply.
type response struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Raw   any    `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server is the single-purpose backend proxy in front of the upstream
// provider.
type Server struct {
	config   Config
	provider Provider

	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a relay over the given provider.
func NewServer(config Config, provider Provider) *Server {
	s := &Server{
		config:   config,
		provider: provider,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/summarize", s.handleSummarize)
	s.httpSrv = &http.Server{Handler: mux}
	return s
}

// Start binds the listener and begins serving. Non-blocking.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Error("relay", "serve failed: %v", err)
		}
	}()

	debug.Log("relay", "serving on %s (provider: %s)", listener.Addr(), s.provider.Name())
	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains and shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, response{OK: false, Error: "method not allowed"})
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)})
		return
	}
	if req.Prompt == "" && req.Task == "" {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "prompt or task is required"})
		return
	}

	s.complete(r.Context(), w, buildGeneratePrompt(req))
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, response{OK: false, Error: "method not allowed"})
		return
	}

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)})
		return
	}
	if req.PageContext == "" {
		writeJSON(w, http.StatusBadRequest, response{OK: false, Error: "page_context is required"})
		return
	}

	s.complete(r.Context(), w, buildSummarizePrompt(req))
}

// complete performs the upstream call and writes the envelope. The request
// context flows through so an aborted client call aborts the upstream one.
func (s *Server) complete(ctx context.Context, w http.ResponseWriter, prompt string) {
	text, raw, err := s.provider.Generate(ctx, prompt, s.config.MaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away; nobody is reading the response.
			return
		}
		debug.Warn("relay", "%s upstream call failed: %v", s.provider.Name(), err)
		writeJSON(w, http.StatusBadGateway, response{OK: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true, Text: text, Raw: raw})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Log("relay", "failed to write response: %v", err)
	}
}
