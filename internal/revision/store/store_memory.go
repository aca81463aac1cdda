package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/sentinel"
)

// InMemory keeps revisions in a map guarded by a single mutex. The mutex makes
// UpdateIfState's compare-and-set atomic, matching the Postgres conditional update.
type InMemory struct {
	mu        sync.RWMutex
	revisions map[id.RevisionID]*models.Revision
}

func NewInMemory() *InMemory {
	return &InMemory{revisions: make(map[id.RevisionID]*models.Revision)}
}

func (s *InMemory) Create(_ context.Context, r *models.Revision) error {
	if r == nil {
		return fmt.Errorf("revision is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.revisions[r.ID]; exists {
		return fmt.Errorf("revision %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.revisions[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, revisionID id.RevisionID) (*models.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.revisions[revisionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// UpdateIfState moves the revision to next only while it is still in expected.
// Returns sentinel.ErrConflict when another writer changed the state first.
func (s *InMemory) UpdateIfState(_ context.Context, revisionID id.RevisionID, expected, next models.State, decider id.UserID, decidedAt time.Time) (*models.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.revisions[revisionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if r.State != expected {
		return nil, sentinel.ErrConflict
	}
	r.State = next
	r.DeciderID = &decider
	r.DecidedAt = &decidedAt
	return r.Clone(), nil
}

// ListByState returns revisions in any of states, newest first. limit <= 0 means no limit.
func (s *InMemory) ListByState(_ context.Context, states []models.State, limit int) ([]*models.Revision, error) {
	want := make(map[models.State]bool, len(states))
	for _, st := range states {
		want[st] = true
	}
	s.mu.RLock()
	out := make([]*models.Revision, 0)
	for _, r := range s.revisions {
		if want[r.State] {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByTarget returns every revision for ref, newest first.
func (s *InMemory) ListByTarget(_ context.Context, ref models.RevisableRef) ([]*models.Revision, error) {
	s.mu.RLock()
	out := make([]*models.Revision, 0)
	for _, r := range s.revisions {
		if r.Target == ref {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []*models.Revision) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].RequestedAt.Equal(rs[j].RequestedAt) {
			return rs[i].ID.String() > rs[j].ID.String()
		}
		return rs[i].RequestedAt.After(rs[j].RequestedAt)
	})
}
