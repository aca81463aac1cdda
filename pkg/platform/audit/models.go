package audit

import (
	"context"
	"errors"
	"time"

	id "taxcase/pkg/domain"
)

// ErrPublisherClosed is returned by publishers that no longer accept events.
var ErrPublisherClosed = errors.New("audit publisher closed")

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance,
	// such as decisions on a tax case revision.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the principal who performed the action.
	UserID id.UserID
	// Subject identifies the record acted on, e.g. a revision id.
	Subject  string
	Action   string
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID tracks who performed the action when different from UserID.
	ActorID string
}

type AuditEvent string

const (
	EventRevisionRequested AuditEvent = "revision_requested"
	EventRevisionApproved  AuditEvent = "revision_approved"
	EventRevisionRejected  AuditEvent = "revision_rejected"
	EventAccessDenied      AuditEvent = "revision_access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRevisionApproved: CategoryCompliance,
	EventRevisionRejected: CategoryCompliance,

	EventAccessDenied: CategorySecurity,

	EventRevisionRequested: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
