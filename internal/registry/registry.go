// Package registry tracks in-flight generation requests per origin.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Origin identifies the logical owner of a set of requests, normally a
// browser tab. Callers with no associated tab use OriginNone.
type Origin string

// OriginNone is the sentinel origin for callers with no associated tab
// (CLI invocations, MCP tools).
const OriginNone Origin = ""

// Handle represents one in-flight cancellable request. A handle is owned by
// the registry from Register until Unregister; callers keep only a transient
// reference for the duration of their network call.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	origin Origin
	seq    int64
}

// Context returns the handle's cancellation context. The outbound network
// call must be issued with this context so firing the handle aborts it.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Cancel fires the handle's cancellation token. Safe to call more than once
// and after the underlying request has settled.
func (h *Handle) Cancel() {
	h.cancel()
}

// Origin returns the origin that owns this handle.
func (h *Handle) Origin() Origin {
	return h.origin
}

// Seq returns the handle's creation sequence number, used for diagnostics.
func (h *Handle) Seq() int64 {
	return h.seq
}

// Registry maps origins to their outstanding request handles. All mutation
// goes through Register, Unregister and CancelAll; the map is guarded by a
// single mutex so the invariant "origin present iff its set is non-empty"
// holds after every operation.
type Registry struct {
	mu      sync.Mutex
	handles map[Origin]map[*Handle]struct{}

	nextSeq         atomic.Int64
	totalRegistered atomic.Int64
	totalCancelled  atomic.Int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handles: make(map[Origin]map[*Handle]struct{}),
	}
}

// NewHandle constructs a fresh handle for origin, derived from parent.
// The handle is not yet registered.
func (r *Registry) NewHandle(parent context.Context, origin Origin) *Handle {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		ctx:    ctx,
		cancel: cancel,
		origin: origin,
		seq:    r.nextSeq.Add(1),
	}
}

// Register adds handle to origin's set, creating the set if absent.
func (r *Registry) Register(origin Origin, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.handles[origin]
	if !ok {
		set = make(map[*Handle]struct{})
		r.handles[origin] = set
	}
	set[h] = struct{}{}
	r.totalRegistered.Add(1)
}

// Unregister removes handle from origin's set. Removing a handle that is no
// longer registered is a no-op, so normal completion racing an external
// CancelAll is safe on both sides.
func (r *Registry) Unregister(origin Origin, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.handles[origin]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(r.handles, origin)
	}
}

// CancelAll fires every handle currently registered under origin and clears
// the origin's entry. Returns the number of handles cancelled; 0 when the
// origin has no entries. The entry is removed under the lock and the cancels
// fire outside it, so a concurrent Unregister for the same handles is a
// harmless no-op.
func (r *Registry) CancelAll(origin Origin) int {
	r.mu.Lock()
	set := r.handles[origin]
	delete(r.handles, origin)
	r.mu.Unlock()

	for h := range set {
		h.Cancel()
	}
	if n := len(set); n > 0 {
		r.totalCancelled.Add(int64(n))
		return n
	}
	return 0
}

// Count returns the number of handles currently registered under origin.
func (r *Registry) Count(origin Origin) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles[origin])
}

// Origins returns all origins with at least one outstanding handle.
func (r *Registry) Origins() []Origin {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Origin, 0, len(r.handles))
	for origin := range r.handles {
		result = append(result, origin)
	}
	return result
}

// Info contains statistics about the registry.
type Info struct {
	Outstanding     int   `json:"outstanding"`
	TotalRegistered int64 `json:"total_registered"`
	TotalCancelled  int64 `json:"total_cancelled"`
}

// Info returns statistics about the registry.
func (r *Registry) Info() Info {
	r.mu.Lock()
	outstanding := 0
	for _, set := range r.handles {
		outstanding += len(set)
	}
	r.mu.Unlock()

	return Info{
		Outstanding:     outstanding,
		TotalRegistered: r.totalRegistered.Load(),
		TotalCancelled:  r.totalCancelled.Load(),
	}
}
