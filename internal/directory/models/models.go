// Package models holds the identity directory records: users and the
// organizational entities they belong to.
package models

import (
	"strings"
	"time"

	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
	emailutil "taxcase/pkg/email"
)

// User is a directory account. EntityID is nil for users attached to no
// organizational unit.
type User struct {
	ID        id.UserID
	Email     string
	Name      string
	Role      string
	EntityID  *id.EntityID
	CreatedAt time.Time
}

// Entity is an organizational unit such as a holding or one of its branches.
type Entity struct {
	ID        id.EntityID
	Name      string
	Type      string
	ParentID  *id.EntityID
	CreatedAt time.Time
}

func NewUser(userID id.UserID, email, name, role string, entityID *id.EntityID, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user role is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if name == "" && email != "" {
		first, last := emailutil.DeriveNameFromEmail(email)
		name = first + " " + last
	}
	return &User{
		ID:        userID,
		Email:     email,
		Name:      name,
		Role:      role,
		EntityID:  entityID,
		CreatedAt: now,
	}, nil
}

func NewEntity(entityID id.EntityID, name, entityType string, parent *id.EntityID, now time.Time) (*Entity, error) {
	if entityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity id is required")
	}
	entityType = strings.ToUpper(strings.TrimSpace(entityType))
	if entityType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity type is required")
	}
	return &Entity{
		ID:        entityID,
		Name:      strings.TrimSpace(name),
		Type:      entityType,
		ParentID:  parent,
		CreatedAt: now,
	}, nil
}
