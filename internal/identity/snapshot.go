package identity

import (
	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
)

// Snapshot is the cacheable form of a resolved principal.
type Snapshot struct {
	UserID id.UserID       `json:"user_id"`
	Role   string          `json:"role"`
	Entity *EntitySnapshot `json:"entity,omitempty"`
}

type EntitySnapshot struct {
	ID   id.EntityID `json:"id"`
	Name string      `json:"name"`
	Type string      `json:"entity_type"`
}

func (s Snapshot) Principal() models.Principal {
	var entity *models.Entity
	if s.Entity != nil {
		entity = &models.Entity{
			ID:   s.Entity.ID,
			Name: s.Entity.Name,
			Type: models.ParseEntityType(s.Entity.Type),
		}
	}
	return models.NewPrincipal(s.UserID, models.Role(s.Role), entity)
}
