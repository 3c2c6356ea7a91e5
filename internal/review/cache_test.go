package review

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moodlog-insights/internal/models"
)

func setupRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(NewRedisKVStore(client), zap.NewNop()), mr
}

func TestCache_SetAndGetCurrent(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	review := &models.WeeklyReview{
		ID:        "review-1",
		UserID:    "user-1",
		WeekStart: day(2024, time.March, 11),
		WeekEnd:   day(2024, time.March, 18),
		Summary:   models.MoodSummary{Average: 6, Highest: 8, Lowest: 4},
	}

	require.NoError(t, cache.SetCurrent(ctx, "user-1", review))

	got, err := cache.GetCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "review-1", got.ID)
	assert.InDelta(t, 6.0, got.Summary.Average, 1e-9)
	assert.True(t, got.WeekStart.Equal(review.WeekStart))
}

func TestCache_GetCurrentMiss(t *testing.T) {
	cache, _ := setupRedisCache(t)

	_, err := cache.GetCurrent(context.Background(), "user-1")
	assert.Equal(t, ErrCacheMiss, err)
}

func TestCache_ExpiresAfterOneWeek(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	review := &models.WeeklyReview{ID: "review-1", UserID: "user-1",
		WeekStart: day(2024, time.March, 11), WeekEnd: day(2024, time.March, 18)}
	require.NoError(t, cache.SetCurrent(ctx, "user-1", review))

	mr.FastForward(8 * 24 * time.Hour)

	_, err := cache.GetCurrent(ctx, "user-1")
	assert.Equal(t, ErrCacheMiss, err)
}

func TestCache_CorruptPayload(t *testing.T) {
	cache, mr := setupRedisCache(t)

	require.NoError(t, mr.Set("moodlog:user:user-1:review:current", "{not json"))

	_, err := cache.GetCurrent(context.Background(), "user-1")
	assert.Error(t, err)
	assert.NotEqual(t, ErrCacheMiss, err)
}
