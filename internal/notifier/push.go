package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// pushMessage 推送网关请求体
type pushMessage struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// PushNotifier 通过 HTTP 推送网关发送移动端推送
// 发送失败只记录日志，不重试（网关自身带重试队列）
type PushNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewPushNotifier 创建推送网关客户端
func NewPushNotifier(baseURL, apiKey string, logger *zap.Logger) *PushNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey)

	return &PushNotifier{
		httpClient: client,
		logger:     logger,
	}
}

func (p *PushNotifier) AchievementUnlocked(ctx context.Context, event AchievementUnlockedEvent) {
	p.send(ctx, pushMessage{
		UserID: event.UserID,
		Kind:   KindAchievementUnlocked,
		Title:  "Achievement unlocked",
		Body:   event.Title,
	})
}

func (p *PushNotifier) PatternInsight(ctx context.Context, event PatternInsightEvent) {
	p.send(ctx, pushMessage{
		UserID: event.UserID,
		Kind:   KindPatternInsight,
		Title:  "Mood insight",
		Body:   event.Insight,
	})
}

func (p *PushNotifier) Reengagement(ctx context.Context, event ReengagementEvent) {
	p.send(ctx, pushMessage{
		UserID: event.UserID,
		Kind:   KindReengagement,
		Title:  "We miss you",
		Body:   fmt.Sprintf("It has been %d days since your last entry", event.DaysInactive),
	})
}

func (p *PushNotifier) WeeklyReviewReady(ctx context.Context, event ReviewReadyEvent) {
	p.send(ctx, pushMessage{
		UserID: event.UserID,
		Kind:   KindWeeklyReviewReady,
		Title:  "Your weekly review is ready",
		Body:   "Take a look back at your week",
	})
}

func (p *PushNotifier) send(ctx context.Context, msg pushMessage) {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		Post("/v1/push")

	if err != nil {
		p.logger.Error("Failed to send push notification",
			zap.String("kind", msg.Kind),
			zap.String("user_id", msg.UserID),
			zap.Error(err),
		)
		return
	}
	if resp.IsError() {
		p.logger.Error("Push gateway returned error",
			zap.String("kind", msg.Kind),
			zap.String("user_id", msg.UserID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return
	}

	p.logger.Debug("Push notification sent",
		zap.String("kind", msg.Kind),
		zap.String("user_id", msg.UserID),
	)
}
