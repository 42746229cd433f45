// Package bridge is the extension-facing daemon: pages connect over
// websocket, issue action messages, and receive replies plus lifecycle
// events on the same connection.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/pagelens/pagelens/internal/coordinator"
	"github.com/pagelens/pagelens/internal/debug"
	"github.com/pagelens/pagelens/internal/lifecycle"
	"github.com/pagelens/pagelens/internal/registry"
)

// Config holds bridge server configuration.
type Config struct {
	// Listen is the address the websocket endpoint binds to.
	Listen string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen: "127.0.0.1:8474",
	}
}

// Server accepts extension connections and dispatches their action messages.
type Server struct {
	config  Config
	coord   *coordinator.Coordinator
	hub     *lifecycle.SurfaceHub
	watcher *Watcher

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener

	connCount atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a bridge server.
func NewServer(config Config, coord *coordinator.Coordinator, hub *lifecycle.SurfaceHub, watcher *Watcher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		coord:   coord,
		hub:     hub,
		watcher: watcher,
		upgrader: websocket.Upgrader{
			// The extension connects from its own page context; the
			// bridge is loopback-only so cross-origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
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
			debug.Error("bridge", "serve failed: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ConnCount returns the number of connected surfaces.
func (s *Server) ConnCount() int64 {
	return s.connCount.Load()
}

// Stop shuts the server down: in-flight generations are cancelled through
// their handles' parent context, then the HTTP server drains.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	var errs []error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bridge shutdown: %w", err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"connections":%d}`, s.connCount.Load())
}

// handleWS owns one extension connection for its lifetime. The connection
// doubles as the origin's UI surface, so it is attached to the hub before
// any message is read and torn down — surface first, then cancellation —
// when the read loop exits.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("bridge", "websocket upgrade failed: %v", err)
		return
	}

	origin := registry.Origin(r.URL.Query().Get("origin"))
	surface := lifecycle.NewSurface(conn)
	s.hub.Attach(origin, surface)
	s.connCount.Add(1)

	defer func() {
		s.connCount.Add(-1)
		s.hub.Detach(origin, surface)
		// Socket gone means the tab (or its page) is gone.
		s.watcher.OriginGone(origin)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log("bridge", "surface for origin %q read error: %v", origin, err)
			}
			return
		}

		var msg actionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(surface, reply{Type: "reply", OK: false, Error: "malformed action message"})
			continue
		}

		s.dispatch(origin, surface, msg)
	}
}

// dispatch routes one action message. Generations run in their own
// goroutine so several can be in flight per connection; the interleaving
// point is the relay call inside the coordinator.
func (s *Server) dispatch(origin registry.Origin, surface *lifecycle.Surface, msg actionMessage) {
	switch msg.Type {
	case actionInteractiveQuery:
		req := coordinator.QueryRequest{
			Prompt:         msg.Prompt,
			SelectedText:   msg.SelectedText,
			Mode:           msg.Mode,
			Task:           msg.Task,
			TargetLanguage: msg.TargetLanguage,
			PageContext:    msg.PageContext,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			out := s.coord.Query(s.ctx, origin, req)
			if out.OK() {
				s.send(surface, reply{Type: "reply", ID: msg.ID, OK: true, Data: out.Text})
			} else {
				s.send(surface, reply{Type: "reply", ID: msg.ID, OK: false, Error: out.ErrorMessage()})
			}
		}()

	case actionSummarizePage:
		req := coordinator.SummarizeRequest{
			PageContext: msg.PageContext,
			Length:      msg.Length,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			out := s.coord.Summarize(s.ctx, origin, req)
			if out.OK() {
				s.send(surface, reply{Type: "reply", ID: msg.ID, OK: true, Text: out.Text})
			} else {
				s.send(surface, reply{Type: "reply", ID: msg.ID, OK: false, Error: out.ErrorMessage()})
			}
		}()

	case actionAbortRequests:
		n := s.watcher.Abort(origin)
		s.send(surface, reply{
			Type:    "reply",
			ID:      msg.ID,
			OK:      true,
			Message: fmt.Sprintf("cancelled %d request(s)", n),
		})

	case actionOriginTeardown:
		// Fire-and-forget, no reply.
		s.watcher.OriginGone(origin)

	default:
		s.send(surface, reply{
			Type:  "reply",
			ID:    msg.ID,
			OK:    false,
			Error: fmt.Sprintf("unknown action %q", msg.Type),
		})
	}
}

func (s *Server) send(surface *lifecycle.Surface, r reply) {
	if err := surface.Send(r); err != nil {
		debug.Log("bridge", "reply dropped: %v", err)
	}
}
