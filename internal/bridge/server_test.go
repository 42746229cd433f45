package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagelens/pagelens/internal/coordinator"
	"github.com/pagelens/pagelens/internal/lifecycle"
	"github.com/pagelens/pagelens/internal/registry"
)

// frame is the superset of reply and event fields a client can receive.
type frame struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	OK      *bool  `json:"ok"`
	Data    string `json:"data"`
	Text    string `json:"text"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Event   string `json:"event"`
	Kind    string `json:"kind"`
}

func setupBridge(t *testing.T, relayHandler http.Handler) (*Server, *registry.Registry) {
	t.Helper()

	relay := httptest.NewServer(relayHandler)
	t.Cleanup(relay.Close)

	reg := registry.New()
	hub := lifecycle.NewSurfaceHub()
	coord := coordinator.New(reg, hub, coordinator.NewRelayClient(relay.URL))

	srv := NewServer(Config{Listen: "127.0.0.1:0"}, coord, hub, NewWatcher(reg))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	return srv, reg
}

func dialBridge(t *testing.T, srv *Server, origin string) *websocket.Conn {
	t.Helper()
	wsURL := fmt.Sprintf("ws://%s/ws?origin=%s", srv.Addr(), origin)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrames reads until a reply with the given id arrives, returning every
// frame seen (events included) in order.
func readFrames(t *testing.T, conn *websocket.Conn, untilReplyID string) []frame {
	t.Helper()
	var frames []frame
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON() error = %v (frames so far: %+v)", err, frames)
		}
		frames = append(frames, f)
		if f.Type == "reply" && f.ID == untilReplyID {
			return frames
		}
	}
}

func stubRelay(text string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"text":%q}`, text)
	})
}

func TestBridge_QueryRoundTrip(t *testing.T) {
	srv, _ := setupBridge(t, stubRelay("the answer"))
	conn := dialBridge(t, srv, "tab-1")

	err := conn.WriteJSON(map[string]string{
		"type":   "interactive_query",
		"id":     "q1",
		"prompt": "what is this page about?",
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	frames := readFrames(t, conn, "q1")

	// The same connection carries started, finished, and the reply.
	var events []frame
	for _, f := range frames {
		if f.Type == "event" {
			events = append(events, f)
		}
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (started, finished): %+v", len(events), events)
	}
	if events[0].Event != "started" || events[0].Kind != "query" {
		t.Errorf("first event = %+v, want started/query", events[0])
	}
	if events[1].Event != "finished" || events[1].OK == nil || !*events[1].OK {
		t.Errorf("second event = %+v, want finished ok", events[1])
	}

	last := frames[len(frames)-1]
	if last.OK == nil || !*last.OK || last.Data != "the answer" {
		t.Errorf("reply = %+v, want ok with data", last)
	}
}

func TestBridge_SummarizeRoundTrip(t *testing.T) {
	srv, _ := setupBridge(t, stubRelay("a short summary"))
	conn := dialBridge(t, srv, "tab-2")

	err := conn.WriteJSON(map[string]string{
		"type":         "summarize_page",
		"id":           "s1",
		"page_context": "long page text",
		"length":       "short",
	})
	if err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	frames := readFrames(t, conn, "s1")
	last := frames[len(frames)-1]
	if last.OK == nil || !*last.OK || last.Text != "a short summary" {
		t.Errorf("reply = %+v, want ok with text", last)
	}
}

func TestBridge_AbortRepliesWithCount(t *testing.T) {
	release := make(chan struct{})
	srv, reg := setupBridge(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	conn := dialBridge(t, srv, "tab-7")

	conn.WriteJSON(map[string]string{"type": "interactive_query", "id": "q1", "prompt": "p"})
	conn.WriteJSON(map[string]string{"type": "summarize_page", "id": "s1", "page_context": "p"})

	deadline := time.Now().Add(2 * time.Second)
	for reg.Count("tab-7") != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, %d handles in flight", reg.Count("tab-7"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.WriteJSON(map[string]string{"type": "abort_requests", "id": "a1"})

	sawAbortReply := false
	cancelled := 0
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !sawAbortReply || cancelled < 2 {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		switch {
		case f.Type == "reply" && f.ID == "a1":
			sawAbortReply = true
			if f.OK == nil || !*f.OK {
				t.Errorf("abort reply = %+v, want ok", f)
			}
			if !strings.Contains(f.Message, "2") {
				t.Errorf("abort message = %q, want count of 2", f.Message)
			}
		case f.Type == "reply":
			if f.Error != "request cancelled" {
				t.Errorf("reply %s error = %q, want request cancelled", f.ID, f.Error)
			}
			cancelled++
		}
	}

	if got := reg.Count("tab-7"); got != 0 {
		t.Errorf("registry still holds %d handles for tab-7", got)
	}
}

func TestBridge_TeardownWithNoHandlesIsSilent(t *testing.T) {
	srv, _ := setupBridge(t, stubRelay("unused"))
	conn := dialBridge(t, srv, "tab-9")

	conn.WriteJSON(map[string]string{"type": "origin_teardown"})

	// Teardown emits neither a reply nor an event; the next round-trip
	// must be the first frame we see.
	conn.WriteJSON(map[string]string{"type": "interactive_query", "id": "q1", "prompt": "p"})
	frames := readFrames(t, conn, "q1")
	if frames[0].Type != "event" || frames[0].Event != "started" {
		t.Errorf("first frame = %+v, want the query's started event", frames[0])
	}
}

func TestBridge_DisconnectCancelsInFlight(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv, reg := setupBridge(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	conn := dialBridge(t, srv, "tab-3")
	conn.WriteJSON(map[string]string{"type": "interactive_query", "id": "q1", "prompt": "p"})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("relay call never started")
	}

	// Tab destroyed: the socket just drops.
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Count("tab-3") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("handles for tab-3 not cancelled, %d left", reg.Count("tab-3"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridge_UnknownAction(t *testing.T) {
	srv, _ := setupBridge(t, stubRelay("unused"))
	conn := dialBridge(t, srv, "tab-1")

	conn.WriteJSON(map[string]string{"type": "dance", "id": "d1"})
	frames := readFrames(t, conn, "d1")
	last := frames[len(frames)-1]
	if last.OK == nil || *last.OK || last.Error == "" {
		t.Errorf("reply = %+v, want error for unknown action", last)
	}
}

func TestBridge_Healthz(t *testing.T) {
	srv, _ := setupBridge(t, stubRelay("unused"))

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
