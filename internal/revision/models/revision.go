package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
)

const maxReasonLength = 1000

// Revision is a request to revise a domain record, and its decision.
//
// Invariants:
//   - State only moves requested -> approved or requested -> rejected
//   - DeciderID and DecidedAt are both nil while requested and both set once decided
//   - Target and RequesterID never change after construction
type Revision struct {
	ID          id.RevisionID `json:"id"`
	Target      RevisableRef  `json:"target"`
	RequesterID id.UserID     `json:"requester_id"`
	State       State         `json:"state"`
	Reason      string        `json:"reason,omitempty"`
	DeciderID   *id.UserID    `json:"decider_id,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}

// NewRevision constructs a revision in the requested state.
func NewRevision(revisionID id.RevisionID, target RevisableRef, requester id.UserID, reason string, now time.Time) (*Revision, error) {
	if revisionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "revision id is required")
	}
	if target.Kind == "" || target.ID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "revision target is required")
	}
	if requester.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester is required")
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reason must be at most 1000 characters")
	}
	return &Revision{
		ID:          revisionID,
		Target:      target,
		RequesterID: requester,
		State:       StateRequested,
		Reason:      reason,
		RequestedAt: now,
	}, nil
}

// CanDecide checks that the revision is still awaiting a decision.
func (r *Revision) CanDecide(outcome Outcome) error {
	if !outcome.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown decision outcome")
	}
	if !r.State.CanTransitionTo(outcome.State()) {
		return ErrInvalidStateTransition
	}
	return nil
}

// ApplyDecision sets state, decider, and decision time together.
// Call CanDecide first.
func (r *Revision) ApplyDecision(outcome Outcome, decider id.UserID, now time.Time) {
	r.State = outcome.State()
	r.DeciderID = &decider
	r.DecidedAt = &now
}

// IsDecided reports whether the revision reached a terminal state.
func (r *Revision) IsDecided() bool {
	return r.State.IsTerminal()
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (r *Revision) Clone() *Revision {
	if r == nil {
		return nil
	}
	c := *r
	if r.DeciderID != nil {
		d := *r.DeciderID
		c.DeciderID = &d
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
