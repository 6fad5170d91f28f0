package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kostBack/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *ListingCache) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewListingCache(rdb, time.Minute)
}

func TestListingCache_SetGetInvalidate(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	_, hit, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	photo := "fotoKost-1.jpg"
	in := []models.Listing{{
		ID: 1,
		ListingFields: models.ListingFields{
			Name:           "Kost A",
			TotalRooms:     "10",
			RoomFacilities: models.StringList{"AC", "Kasur"},
		},
		ImageRefs: models.ImageRefs{Exterior: &photo},
	}}
	require.NoError(t, c.Set(ctx, 0, in))
	assert.Equal(t, time.Minute, mr.TTL(listingsAllKey))

	out, hit, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, out, 1)
	assert.Equal(t, "Kost A", out[0].Name)
	assert.Equal(t, models.StringList{"AC", "Kasur"}, out[0].RoomFacilities)
	assert.Equal(t, models.StringList{}, out[0].Rules)
	require.NotNil(t, out[0].Exterior)
	assert.Equal(t, photo, *out[0].Exterior)
	assert.Nil(t, out[0].InsideRoom)

	require.NoError(t, c.Invalidate(ctx))
	_, hit, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestListingCache_SetAfterWriteIsDropped(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, []models.Listing{{ID: 1}}))
	assert.False(t, mr.Exists(listingsAllKey))

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	require.NoError(t, c.Set(ctx, gen, []models.Listing{{ID: 1}}))

	out, hit, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, out, 1)
}

func TestListingCache_Expires(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 0, []models.Listing{}))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestListingCache_CorruptEntry(t *testing.T) {
	mr, c := setupTestRedis(t)
	require.NoError(t, mr.Set(listingsAllKey, "{not json"))

	_, hit, err := c.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestListingCache_NilIsNoop(t *testing.T) {
	var c *ListingCache
	assert.Nil(t, NewListingCache(nil, 0))

	ctx := context.Background()
	_, hit, err := c.Get(ctx)
	assert.NoError(t, err)
	assert.False(t, hit)
	gen, err := c.Generation(ctx)
	assert.NoError(t, err)
	assert.Zero(t, gen)
	assert.NoError(t, c.Set(ctx, 0, nil))
	assert.NoError(t, c.Invalidate(ctx))
}
