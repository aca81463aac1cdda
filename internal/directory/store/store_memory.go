package store

import (
	"context"
	"sync"

	"taxcase/internal/directory/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/sentinel"
)

// InMemory is a directory store for development and tests.
type InMemory struct {
	mu       sync.RWMutex
	users    map[id.UserID]models.User
	entities map[id.EntityID]models.Entity
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:    make(map[id.UserID]models.User),
		entities: make(map[id.EntityID]models.Entity),
	}
}

func (s *InMemory) FindUser(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemory) FindEntity(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// SaveUser inserts or replaces a user.
func (s *InMemory) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

// SaveEntity inserts or replaces an entity.
func (s *InMemory) SaveEntity(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = *e
	return nil
}
