package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moodlog-insights/internal/models"
)

func setupStreamNotifier(t *testing.T) (*StreamNotifier, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStreamNotifier(client, "moodlog:notifications", zap.NewNop()), client
}

func TestStreamNotifier_AchievementUnlocked(t *testing.T) {
	n, client := setupStreamNotifier(t)
	ctx := context.Background()

	n.AchievementUnlocked(ctx, AchievementUnlockedEvent{
		UserID:     "user-1",
		Type:       models.AchievementType("streak_3"),
		Title:      "Three in a Row",
		UnlockedAt: time.Date(2024, time.March, 13, 8, 0, 0, 0, time.UTC),
	})

	msgs, err := client.XRange(ctx, "moodlog:notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	values := msgs[0].Values
	assert.Equal(t, KindAchievementUnlocked, values["kind"])
	assert.Equal(t, "user-1", values["user_id"])

	var event AchievementUnlockedEvent
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &event))
	assert.Equal(t, models.AchievementType("streak_3"), event.Type)
	assert.Equal(t, "Three in a Row", event.Title)
}

func TestStreamNotifier_AllKinds(t *testing.T) {
	n, client := setupStreamNotifier(t)
	ctx := context.Background()

	n.PatternInsight(ctx, PatternInsightEvent{UserID: "user-1", Insight: "Exercise tends to lift your mood"})
	n.Reengagement(ctx, ReengagementEvent{UserID: "user-1", DaysInactive: 7})
	n.WeeklyReviewReady(ctx, ReviewReadyEvent{UserID: "user-1", ReviewID: "review-1"})

	msgs, err := client.XRange(ctx, "moodlog:notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, KindPatternInsight, msgs[0].Values["kind"])
	assert.Equal(t, KindReengagement, msgs[1].Values["kind"])
	assert.Equal(t, KindWeeklyReviewReady, msgs[2].Values["kind"])
}
