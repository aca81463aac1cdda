// Package publishers routes audit events to a publisher per category, so each
// category keeps its own delivery guarantees and backpressure.
package publishers

import (
	"context"
	"fmt"

	audit "taxcase/pkg/platform/audit"
)

// Emitter is implemented by every category publisher.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Router struct {
	routes   map[audit.EventCategory]Emitter
	fallback Emitter
}

// NewRouter creates a router. fallback receives categories with no registered
// publisher and may be nil.
func NewRouter(fallback Emitter) *Router {
	return &Router{
		routes:   make(map[audit.EventCategory]Emitter),
		fallback: fallback,
	}
}

func (r *Router) Register(category audit.EventCategory, emitter Emitter) {
	r.routes[category] = emitter
}

// Emit derives the category from the action when unset and hands the event to
// that category's publisher.
func (r *Router) Emit(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	emitter, ok := r.routes[event.Category]
	if !ok {
		emitter = r.fallback
	}
	if emitter == nil {
		return fmt.Errorf("no audit publisher for category %q", event.Category)
	}
	return emitter.Emit(ctx, event)
}
