package models

import dErrors "taxcase/pkg/domain-errors"

// Error kinds returned by the workflow. Each carries a domain error code so
// transports can map it, and is comparable with errors.Is.
var (
	// ErrPrincipalNotResolved: the caller passed a principal whose role or
	// entity were never loaded.
	ErrPrincipalNotResolved = dErrors.New(dErrors.CodeUnauthorized, "principal not resolved")

	// ErrUnauthorized: the authorization predicate denied the action.
	ErrUnauthorized = dErrors.New(dErrors.CodeForbidden, "not authorized for this action")

	// ErrInvalidStateTransition: the revision is not in a state the
	// requested transition can start from.
	ErrInvalidStateTransition = dErrors.New(dErrors.CodeInvalidState, "revision is not awaiting a decision")

	// ErrNotFound: the referenced revision does not exist.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "revision not found")

	// ErrUnknownAction: the gate was asked about an action it does not know.
	ErrUnknownAction = dErrors.New(dErrors.CodeInvalidInput, "unknown action")
)
