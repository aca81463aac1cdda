//go:build integration

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "taxcase/pkg/domain"
	"taxcase/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	snap := Snapshot{
		UserID: id.UserID(uuid.New()),
		Role:   "staff",
		Entity: &EntitySnapshot{ID: id.EntityID(uuid.New()), Name: "Group", Type: "HOLDING"},
	}

	_, ok, err := s.cache.Get(ctx, snap.UserID)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, snap))
	got, ok, err := s.cache.Get(ctx, snap.UserID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(snap, got)
	s.True(got.Principal().BelongsToHolding())

	ttl, err := s.redis.Client.TTL(ctx, cacheKey(snap.UserID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.cache.Invalidate(ctx, snap.UserID))
	_, ok, err = s.cache.Get(ctx, snap.UserID)
	s.Require().NoError(err)
	s.False(ok)
}
