package bridge

import (
	"github.com/pagelens/pagelens/internal/debug"
	"github.com/pagelens/pagelens/internal/registry"
)

// Watcher reacts to origin teardown. Both teardown paths — the page
// announcing it is unloading and the websocket dropping because the tab was
// destroyed — converge here, as does the explicit abort action.
type Watcher struct {
	reg *registry.Registry
}

// NewWatcher creates a watcher over reg.
func NewWatcher(reg *registry.Registry) *Watcher {
	return &Watcher{reg: reg}
}

// OriginGone cancels everything outstanding for a torn-down origin.
// Teardown of an origin with nothing in flight is silent. The sentinel
// origin is never torn down: its callers are not tied to a surface.
func (w *Watcher) OriginGone(origin registry.Origin) {
	if origin == registry.OriginNone {
		return
	}
	if n := w.reg.CancelAll(origin); n > 0 {
		debug.Log("watcher", "origin %q gone, cancelled %d request(s)", origin, n)
	}
}

// Abort cancels everything outstanding for origin and returns the count for
// the synchronous reply.
func (w *Watcher) Abort(origin registry.Origin) int {
	n := w.reg.CancelAll(origin)
	if n > 0 {
		debug.Log("watcher", "abort for origin %q cancelled %d request(s)", origin, n)
	}
	return n
}
