package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/cache"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/testutil"
)

func setup(t *testing.T) (*miniredis.Miniredis, *testutil.FakeTable[model.Lead], *cache.Collection[model.Lead]) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	principal := repository.StaticPrincipal("u1")
	fake := testutil.NewFakeTable[model.Lead](repository.TableLeads, principal, nil)
	return mr, fake, cache.Wrap[model.Lead](fake, rdb, principal, time.Minute, nil)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "service:aidplug|leads|user_id:u1", cache.Key("leads", "u1"))
}

func TestListIsServedFromCache(t *testing.T) {
	mr, fake, c := setup(t)
	ctx := context.Background()
	fake.Seed("u1", model.Lead{FullName: "Omar"})

	first, err := c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, mr.Exists(cache.Key("leads", "u1")))

	second, err := c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"list"}, fake.Calls())
}

func TestFilteredListBypassesCache(t *testing.T) {
	mr, fake, c := setup(t)
	ctx := context.Background()
	fake.Seed("u1", model.Lead{FullName: "Omar", QualificationStatus: "hot"})

	_, err := c.List(ctx, repository.Where(repository.Eq("qualification_status", "hot")))
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.Key("leads", "u1")))
}

func TestWritesInvalidate(t *testing.T) {
	mr, fake, c := setup(t)
	ctx := context.Background()
	key := cache.Key("leads", "u1")

	_, err := c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	created, err := c.Insert(ctx, model.LeadInput{FullName: model.Ptr("Sara")})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	list, err := c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = c.Update(ctx, created.ID, model.LeadInput{UrgencyLevel: model.Ptr("high")})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	_, err = c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, created.ID))
	assert.False(t, mr.Exists(key))
	assert.Equal(t, 0, fake.Len())
}

func TestFailedWriteKeepsCache(t *testing.T) {
	mr, fake, c := setup(t)
	ctx := context.Background()

	_, err := c.List(ctx, repository.ListOptions{})
	require.NoError(t, err)

	fake.InsertErr = assert.AnError
	_, err = c.Insert(ctx, model.LeadInput{FullName: model.Ptr("Sara")})
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, mr.Exists(cache.Key("leads", "u1")))
}

func TestRedisDownFallsThrough(t *testing.T) {
	mr, fake, c := setup(t)
	fake.Seed("u1", model.Lead{FullName: "Omar"})
	mr.Close()

	list, err := c.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
