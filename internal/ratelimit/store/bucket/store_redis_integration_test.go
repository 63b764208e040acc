//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/internal/ratelimit/store/bucket"
	"docverify/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = bucket.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) TestAllowUpToLimitThenDeny() {
	ctx := context.Background()
	for i := range 5 {
		result, err := s.store.Allow(ctx, "lookup:10.0.0.1", 5, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(5-(i+1), result.Remaining)
	}

	result, err := s.store.Allow(ctx, "lookup:10.0.0.1", 5, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, 60)

	count, err := s.store.GetCurrentCount(ctx, "lookup:10.0.0.1", time.Minute)
	s.Require().NoError(err)
	s.Equal(5, count)
}

func (s *RedisBucketStoreSuite) TestWindowExpires() {
	ctx := context.Background()
	window := 300 * time.Millisecond
	for range 2 {
		_, err := s.store.Allow(ctx, "submission:10.0.0.2", 2, window)
		s.Require().NoError(err)
	}
	result, err := s.store.Allow(ctx, "submission:10.0.0.2", 2, window)
	s.Require().NoError(err)
	s.False(result.Allowed)

	s.Eventually(func() bool {
		r, err := s.store.Allow(ctx, "submission:10.0.0.2", 2, window)
		return err == nil && r.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "lookup:10.0.0.3", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "lookup:10.0.0.3"))

	result, err := s.store.Allow(ctx, "lookup:10.0.0.3", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
