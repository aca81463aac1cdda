package domain

import (
	"github.com/google/uuid"

	dErrors "taxcase/pkg/domain-errors"
)

// Typed identifiers keep principals, entities, and revisions from being
// swapped at call sites. All are UUIDs on the wire and in storage.
type (
	UserID     uuid.UUID
	EntityID   uuid.UUID
	RevisionID uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

// ParseUserID validates a user identifier at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	return UserID(u), err
}

// ParseEntityID validates an entity identifier at a trust boundary.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID("entity_id", s)
	return EntityID(u), err
}

// ParseRevisionID validates a revision identifier at a trust boundary.
func ParseRevisionID(s string) (RevisionID, error) {
	u, err := parseUUID("revision_id", s)
	return RevisionID(u), err
}

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id EntityID) String() string   { return uuid.UUID(id).String() }
func (id RevisionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EntityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RevisionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EntityID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RevisionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntityID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RevisionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
