package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRevision(target models.RevisableRef, at time.Time) *models.Revision {
	r, err := models.NewRevision(id.RevisionID(uuid.New()), target, id.UserID(uuid.New()), "", at)
	s.Require().NoError(err)
	return r
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	r := s.newRevision(models.RevisableRef{Kind: models.KindTaxCase, ID: "1"}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r, found)

	s.Run("returned copies are isolated", func() {
		found.State = models.StateApproved
		again, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.StateRequested, again.State)
	})

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, r), sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.RevisionID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdateIfState() {
	r := s.newRevision(models.RevisableRef{Kind: models.KindDocument, ID: "d"}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))
	first := id.UserID(uuid.New())

	updated, err := s.store.UpdateIfState(s.ctx, r.ID, models.StateRequested, models.StateApproved, first, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(models.StateApproved, updated.State)
	s.Equal(first, *updated.DeciderID)

	_, err = s.store.UpdateIfState(s.ctx, r.ID, models.StateRequested, models.StateRejected, id.UserID(uuid.New()), s.now.Add(time.Hour))
	s.ErrorIs(err, sentinel.ErrConflict)

	stored, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StateApproved, stored.State)
	s.Equal(first, *stored.DeciderID)
	s.Equal(s.now.Add(time.Minute), *stored.DecidedAt)

	_, err = s.store.UpdateIfState(s.ctx, id.RevisionID(uuid.New()), models.StateRequested, models.StateApproved, first, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentUpdateIfState verifies exactly one of many racing deciders wins.
func (s *InMemoryStoreSuite) TestConcurrentUpdateIfState() {
	r := s.newRevision(models.RevisableRef{Kind: models.KindSubmission, ID: "s"}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	const goroutines = 50
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := models.StateApproved
			if i%2 == 0 {
				next = models.StateRejected
			}
			_, err := s.store.UpdateIfState(s.ctx, r.ID, models.StateRequested, next, id.UserID(uuid.New()), time.Now())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *InMemoryStoreSuite) TestListing() {
	target := models.RevisableRef{Kind: models.KindTaxCase, ID: "case-7"}
	older := s.newRevision(target, s.now)
	newer := s.newRevision(target, s.now.Add(time.Hour))
	other := s.newRevision(models.RevisableRef{Kind: models.KindTaxCase, ID: "case-8"}, s.now.Add(2*time.Hour))
	for _, r := range []*models.Revision{older, newer, other} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}
	_, err := s.store.UpdateIfState(s.ctx, other.ID, models.StateRequested, models.StateRejected, id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)

	s.Run("by target newest first", func() {
		got, err := s.store.ListByTarget(s.ctx, target)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(newer.ID, got[0].ID)
		s.Equal(older.ID, got[1].ID)
	})

	s.Run("by state with limit", func() {
		got, err := s.store.ListByState(s.ctx, []models.State{models.StateRequested}, 1)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(newer.ID, got[0].ID)
	})

	s.Run("by several states", func() {
		got, err := s.store.ListByState(s.ctx, []models.State{models.StateRequested, models.StateRejected}, 0)
		s.Require().NoError(err)
		s.Len(got, 3)
		s.Equal(other.ID, got[0].ID)
	})
}
