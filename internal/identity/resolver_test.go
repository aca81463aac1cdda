package identity

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dirmodels "taxcase/internal/directory/models"
	dirstore "taxcase/internal/directory/store"
	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/testutil"
)

type memoryCache struct {
	mu     sync.Mutex
	items  map[id.UserID]Snapshot
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[id.UserID]Snapshot)}
}

func (c *memoryCache) Get(_ context.Context, userID id.UserID) (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Snapshot{}, false, c.getErr
	}
	s, ok := c.items[userID]
	return s, ok, nil
}

func (c *memoryCache) Set(_ context.Context, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[snap.UserID] = snap
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, userID id.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

type ResolverSuite struct {
	suite.Suite
	ctx       context.Context
	directory *dirstore.InMemory
	seed      *dirstore.Seed
	cache     *memoryCache
	metrics   *Metrics
	resolver  *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.directory = dirstore.NewInMemory()
	seed, err := dirstore.SeedDevelopment(s.ctx, s.directory, time.Now())
	s.Require().NoError(err)
	s.seed = seed
	s.cache = newMemoryCache()
	s.metrics = NewMetricsWith(prometheus.NewRegistry())
	s.resolver = NewResolver(s.directory, WithCache(s.cache), WithMetrics(s.metrics))
}

func (s *ResolverSuite) TestResolve() {
	s.Run("holding staff", func() {
		p, err := s.resolver.Resolve(s.ctx, s.seed.HoldingStaff)
		s.Require().NoError(err)
		s.True(p.IsResolved())
		s.True(p.BelongsToHolding())
	})

	s.Run("branch staff", func() {
		p, err := s.resolver.Resolve(s.ctx, s.seed.BranchStaff)
		s.Require().NoError(err)
		s.False(p.BelongsToHolding())
		s.Equal(models.EntityTypeBranch, p.Entity.Type)
	})

	s.Run("admin without entity", func() {
		p, err := s.resolver.Resolve(s.ctx, s.seed.Admin)
		s.Require().NoError(err)
		s.True(p.IsResolved())
		s.Nil(p.Entity)
	})

	s.Run("unknown user", func() {
		_, err := s.resolver.Resolve(s.ctx, id.UserID(uuid.New()))
		s.ErrorIs(err, models.ErrPrincipalNotResolved)
	})

	s.Run("nil user", func() {
		_, err := s.resolver.Resolve(s.ctx, id.UserID(uuid.Nil))
		s.ErrorIs(err, models.ErrPrincipalNotResolved)
	})

	s.Run("dangling entity reference", func() {
		missing := id.EntityID(uuid.New())
		u, err := dirmodels.NewUser(id.UserID(uuid.New()), "x@y.z", "X", "staff", &missing, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.directory.SaveUser(s.ctx, u))

		_, err = s.resolver.Resolve(s.ctx, u.ID)
		s.ErrorIs(err, models.ErrPrincipalNotResolved)
	})
}

func (s *ResolverSuite) TestCaching() {
	_, err := s.resolver.Resolve(s.ctx, s.seed.HoldingStaff)
	s.Require().NoError(err)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.CacheMisses))

	_, err = s.resolver.Resolve(s.ctx, s.seed.HoldingStaff)
	s.Require().NoError(err)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.CacheHits))

	s.Run("invalidate forces a reload", func() {
		s.Require().NoError(s.resolver.Invalidate(s.ctx, s.seed.HoldingStaff))
		_, err := s.resolver.Resolve(s.ctx, s.seed.HoldingStaff)
		s.Require().NoError(err)
		s.Equal(2.0, promtestutil.ToFloat64(s.metrics.CacheMisses))
	})

	s.Run("cache errors fall back to the directory", func() {
		s.cache.getErr = errors.New("redis down")
		p, err := s.resolver.Resolve(s.ctx, s.seed.BranchStaff)
		s.Require().NoError(err)
		s.True(p.IsResolved())
	})
}

func TestResolvePrincipalMiddleware(t *testing.T) {
	ctx := context.Background()
	directory := dirstore.NewInMemory()
	seed, err := dirstore.SeedDevelopment(ctx, directory, time.Now())
	require.NoError(t, err)
	resolver := NewResolver(directory)

	var got models.Principal
	handler := ResolvePrincipal(resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("resolved principal reaches the handler", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/")
		req = testutil.WithRequestID(testutil.WithUserID(req, seed.Admin.String()), "req-1")

		rec := testutil.DoRequest(handler, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, seed.Admin, got.ID)
		assert.True(t, got.IsResolved())
	})

	t.Run("unknown user is rejected as unauthenticated", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewRequest(t, http.MethodGet, "/"), uuid.NewString())

		rec := testutil.DoRequest(handler, req)

		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
	})
}

func TestPrincipalFromContextDefault(t *testing.T) {
	assert.False(t, PrincipalFromContext(context.Background()).IsResolved())
}
