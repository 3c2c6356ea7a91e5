package notifier

import (
	"context"
	"encoding/json"

	rediscommon "moodlog-insights/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier 将通知事件发布到 Redis Streams（供宿主应用层消费）
type StreamNotifier struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamNotifier 创建流通知发射器
func NewStreamNotifier(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

func (s *StreamNotifier) AchievementUnlocked(ctx context.Context, event AchievementUnlockedEvent) {
	s.publish(ctx, KindAchievementUnlocked, event.UserID, event)
}

func (s *StreamNotifier) PatternInsight(ctx context.Context, event PatternInsightEvent) {
	s.publish(ctx, KindPatternInsight, event.UserID, event)
}

func (s *StreamNotifier) Reengagement(ctx context.Context, event ReengagementEvent) {
	s.publish(ctx, KindReengagement, event.UserID, event)
}

func (s *StreamNotifier) WeeklyReviewReady(ctx context.Context, event ReviewReadyEvent) {
	s.publish(ctx, KindWeeklyReviewReady, event.UserID, event)
}

// publish 发布单条事件，失败只记录日志（fire-and-forget）
func (s *StreamNotifier) publish(ctx context.Context, kind, userID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to marshal notification event",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}

	if _, err := rediscommon.PublishToStream(ctx, s.redisClient, s.stream, map[string]interface{}{
		"kind":    kind,
		"user_id": userID,
		"data":    string(data),
	}); err != nil {
		s.logger.Error("Failed to publish notification event",
			zap.String("kind", kind),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Published notification event",
		zap.String("kind", kind),
		zap.String("user_id", userID),
	)
}
