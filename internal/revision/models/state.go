package models

import (
	"strings"

	dErrors "taxcase/pkg/domain-errors"
)

// State is the lifecycle state of a revision.
//
// Transitions: requested -> approved, requested -> rejected. Approved and
// rejected are terminal.
type State string

const (
	StateRequested State = "requested"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
)

func (s State) IsValid() bool {
	switch s {
	case StateRequested, StateApproved, StateRejected:
		return true
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s State) CanTransitionTo(next State) bool {
	return s == StateRequested && next.IsTerminal()
}

func (s State) String() string { return string(s) }

// ParseState accepts any casing of a known state name.
func ParseState(raw string) (State, error) {
	s := State(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown revision state: "+raw)
	}
	return s, nil
}

// Outcome is the decision applied to a requested revision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// State returns the terminal state the outcome moves a revision into.
func (o Outcome) State() State {
	return State(o)
}

func (o Outcome) IsValid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// ParseOutcome accepts any casing of approved/rejected.
func ParseOutcome(raw string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(raw)))
	if !o.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown decision outcome: "+raw)
	}
	return o, nil
}
