package models

import (
	"strings"

	id "taxcase/pkg/domain"
)

// Role is the principal's role name as stored in the directory. Matching
// against administrator spellings is case-insensitive and lives in the policy.
type Role string

// Normalized lower-cases and trims the role for comparisons.
func (r Role) Normalized() string {
	return strings.ToLower(strings.TrimSpace(string(r)))
}

// EntityType classifies an organizational unit.
type EntityType string

const (
	EntityTypeHolding    EntityType = "HOLDING"
	EntityTypeSubsidiary EntityType = "SUBSIDIARY"
	EntityTypeBranch     EntityType = "BRANCH"
)

// ParseEntityType upper-cases the stored value. Unknown types are kept as-is
// since only HOLDING carries meaning for the workflow.
func ParseEntityType(raw string) EntityType {
	return EntityType(strings.ToUpper(strings.TrimSpace(raw)))
}

func (t EntityType) IsHolding() bool {
	return t == EntityTypeHolding
}

// Entity is an organizational unit a principal belongs to.
type Entity struct {
	ID   id.EntityID `json:"id"`
	Name string      `json:"name"`
	Type EntityType  `json:"entity_type"`
}

// Principal is the acting user as seen by the workflow.
//
// A Principal is only usable once the identity resolver has loaded its role
// and entity; the zero value is deliberately unresolved so a caller that
// skipped resolution fails fast instead of being treated as entity-less.
type Principal struct {
	ID     id.UserID
	Role   Role
	Entity *Entity

	resolved bool
}

// NewPrincipal builds a resolved principal. A nil entity means the user
// belongs to no organizational unit.
func NewPrincipal(userID id.UserID, role Role, entity *Entity) Principal {
	return Principal{ID: userID, Role: role, Entity: entity, resolved: true}
}

// IsResolved reports whether identity, role, and entity were loaded.
func (p Principal) IsResolved() bool {
	return p.resolved && !p.ID.IsNil() && p.Role.Normalized() != ""
}

// BelongsToHolding reports whether the principal's entity is a HOLDING.
func (p Principal) BelongsToHolding() bool {
	return p.Entity != nil && p.Entity.Type.IsHolding()
}
