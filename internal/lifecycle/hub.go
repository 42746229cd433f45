package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/pagelens/pagelens/internal/debug"
	"github.com/pagelens/pagelens/internal/registry"
)

// Surface wraps a websocket connection to one extension page. Replies and
// lifecycle events share the connection, so every write goes through the
// surface's mutex.
type Surface struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSurface wraps conn as a UI surface.
func NewSurface(conn *websocket.Conn) *Surface {
	return &Surface{conn: conn}
}

// Send writes v as a JSON frame.
func (s *Surface) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (s *Surface) Close() error {
	return s.conn.Close()
}

// SurfaceHub routes lifecycle events to the surface attached to each origin.
// At most one surface is attached per origin; a re-attach for the same
// origin replaces the previous surface (page reloads do this).
type SurfaceHub struct {
	mu       sync.Mutex
	surfaces map[registry.Origin]*Surface

	totalDropped atomic.Int64
}

// NewSurfaceHub creates an empty hub.
func NewSurfaceHub() *SurfaceHub {
	return &SurfaceHub{
		surfaces: make(map[registry.Origin]*Surface),
	}
}

// Attach associates surface with origin. Attaching OriginNone is a no-op:
// the sentinel origin has no addressable surface.
func (h *SurfaceHub) Attach(origin registry.Origin, s *Surface) {
	if origin == registry.OriginNone {
		return
	}
	h.mu.Lock()
	h.surfaces[origin] = s
	h.mu.Unlock()
}

// Detach removes the surface for origin if it is still the given one. A
// stale detach (the origin re-attached a newer surface) leaves the newer
// surface in place.
func (h *SurfaceHub) Detach(origin registry.Origin, s *Surface) {
	h.mu.Lock()
	if current, ok := h.surfaces[origin]; ok && current == s {
		delete(h.surfaces, origin)
	}
	h.mu.Unlock()
}

// Notify delivers ev to origin's surface, fire-and-forget. Events for
// origins with no surface, and events whose write fails, are dropped
// silently; the failure never propagates to the caller.
func (h *SurfaceHub) Notify(origin registry.Origin, ev Event) {
	h.mu.Lock()
	s, ok := h.surfaces[origin]
	h.mu.Unlock()

	if !ok {
		h.totalDropped.Add(1)
		return
	}

	if err := s.Send(ev); err != nil {
		// Surface is gone (page navigated away, tab closed). The next
		// read on the connection will detach it.
		h.totalDropped.Add(1)
		debug.Log("hub", "dropped %s event for origin %q: %v", ev.Event, origin, err)
	}
}

// SurfaceCount returns the number of attached surfaces.
func (h *SurfaceHub) SurfaceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.surfaces)
}

// TotalDropped returns the number of events dropped for lack of a working
// surface.
func (h *SurfaceHub) TotalDropped() int64 {
	return h.totalDropped.Load()
}
