// Package coordinator orchestrates one generation request end to end:
// register a cancellable handle, notify the UI, perform the relay call,
// classify the result, and clean up.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pagelens/pagelens/internal/debug"
	"github.com/pagelens/pagelens/internal/lifecycle"
	"github.com/pagelens/pagelens/internal/registry"
)

// Status tags the terminal classification of one coordinated request.
type Status string

const (
	// StatusSuccess means the relay returned a 2xx response.
	StatusSuccess Status = "success"
	// StatusUpstreamError means the relay returned a non-2xx response.
	StatusUpstreamError Status = "upstream_error"
	// StatusTransportError means the call failed before a response settled.
	StatusTransportError Status = "transport_error"
	// StatusCancelled means the handle's token fired before or during the call.
	StatusCancelled Status = "cancelled"
)

// Outcome is the terminal result of one Run. Exactly one status is produced
// per request and delivered to both the lifecycle event and the reply.
type Outcome struct {
	Status Status

	// Success
	Text string
	Raw  json.RawMessage

	// UpstreamError
	StatusCode int
	Body       string

	// TransportError
	Message string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// ErrorMessage returns the human-readable failure for replies and events,
// or "" on success.
func (o Outcome) ErrorMessage() string {
	switch o.Status {
	case StatusSuccess:
		return ""
	case StatusUpstreamError:
		return (&UpstreamStatusError{StatusCode: o.StatusCode, Body: o.Body}).Error()
	case StatusCancelled:
		return "request cancelled"
	default:
		return o.Message
	}
}

// relayCaller abstracts the two relay endpoints for Run.
type relayCaller func(ctx context.Context) (*RelayResponse, error)

// Coordinator ties the registry, the notifier and the relay client together.
type Coordinator struct {
	reg      *registry.Registry
	notifier lifecycle.Notifier
	relay    *RelayClient
}

// New creates a coordinator.
func New(reg *registry.Registry, notifier lifecycle.Notifier, relay *RelayClient) *Coordinator {
	if notifier == nil {
		notifier = lifecycle.NopNotifier{}
	}
	return &Coordinator{reg: reg, notifier: notifier, relay: relay}
}

// Query runs an interactive query for origin.
func (c *Coordinator) Query(ctx context.Context, origin registry.Origin, req QueryRequest) Outcome {
	return c.run(ctx, origin, lifecycle.KindQuery, func(callCtx context.Context) (*RelayResponse, error) {
		return c.relay.Generate(callCtx, req)
	})
}

// Summarize runs a page summarization for origin.
func (c *Coordinator) Summarize(ctx context.Context, origin registry.Origin, req SummarizeRequest) Outcome {
	return c.run(ctx, origin, lifecycle.KindSummary, func(callCtx context.Context) (*RelayResponse, error) {
		return c.relay.Summarize(callCtx, req)
	})
}

// run performs the coordinated request. Ordering: register and the started
// event happen before the relay call begins; unregister and the finished
// event follow settlement, in that order. Unregister runs unconditionally
// and is idempotent, so an external CancelAll racing normal completion is
// safe on both sides.
func (c *Coordinator) run(ctx context.Context, origin registry.Origin, kind lifecycle.Kind, call relayCaller) Outcome {
	h := c.reg.NewHandle(ctx, origin)
	c.reg.Register(origin, h)
	c.notifier.Notify(origin, lifecycle.Started(kind))

	resp, err := call(h.Context())
	out := classify(resp, err)

	c.reg.Unregister(origin, h)
	c.notifier.Notify(origin, lifecycle.Finished(kind, out.OK(), out.Text, out.ErrorMessage()))

	if !out.OK() {
		debug.Log("coordinator", "%s for origin %q finished: %s", kind, origin, out.ErrorMessage())
	}
	return out
}

// classify maps the settled relay call onto the outcome taxonomy.
// Cancellation is matched on the context error chain, never on message text.
func classify(resp *RelayResponse, err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusSuccess, Text: resp.Text, Raw: resp.Raw}
	}

	if errors.Is(err, context.Canceled) {
		return Outcome{Status: StatusCancelled}
	}

	var upstream *UpstreamStatusError
	if errors.As(err, &upstream) {
		return Outcome{
			Status:     StatusUpstreamError,
			StatusCode: upstream.StatusCode,
			Body:       upstream.Body,
		}
	}

	return Outcome{Status: StatusTransportError, Message: err.Error()}
}
