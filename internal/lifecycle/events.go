// Package lifecycle delivers start/finish notifications to the UI surface
// attached to an origin. Delivery is best-effort: a missing or broken
// surface never affects the request that produced the event.
package lifecycle

import "github.com/pagelens/pagelens/internal/registry"

// Kind distinguishes request categories so the UI can route an event to the
// correct visual surface.
type Kind string

const (
	// KindQuery is an interactive free-form query.
	KindQuery Kind = "query"
	// KindSummary is a page summarization.
	KindSummary Kind = "summary"
)

// Event is one lifecycle notification frame.
type Event struct {
	Type  string `json:"type"` // always "event"
	Event string `json:"event"`
	Kind  Kind   `json:"kind"`
	OK    *bool  `json:"ok,omitempty"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Started builds a generation-started event.
func Started(kind Kind) Event {
	return Event{Type: "event", Event: "started", Kind: kind}
}

// Finished builds a generation-finished event carrying the outcome.
func Finished(kind Kind, ok bool, text, errMsg string) Event {
	return Event{
		Type:  "event",
		Event: "finished",
		Kind:  kind,
		OK:    &ok,
		Text:  text,
		Error: errMsg,
	}
}

// Notifier delivers lifecycle events for an origin. Implementations must
// swallow delivery failures.
type Notifier interface {
	Notify(origin registry.Origin, ev Event)
}

// NopNotifier discards all events. Used by callers with no UI surface.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(registry.Origin, Event) {}
