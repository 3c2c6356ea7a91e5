package notifier

import (
	"context"
	"time"

	"moodlog-insights/internal/models"
)

// 通知事件类型标识（流消息的 kind 字段）
const (
	KindAchievementUnlocked = "achievement_unlocked"
	KindPatternInsight      = "pattern_insight"
	KindReengagement        = "reengagement"
	KindWeeklyReviewReady   = "weekly_review_ready"
)

// AchievementUnlockedEvent 成就解锁事件
type AchievementUnlockedEvent struct {
	UserID     string                 `json:"user_id"`
	Type       models.AchievementType `json:"achievement_type"`
	Title      string                 `json:"title"`
	UnlockedAt time.Time              `json:"unlocked_at"`
}

// PatternInsightEvent 模式洞察事件
type PatternInsightEvent struct {
	UserID  string `json:"user_id"`
	Insight string `json:"insight"`
}

// ReengagementEvent 召回提醒事件
type ReengagementEvent struct {
	UserID       string `json:"user_id"`
	DaysInactive int    `json:"days_inactive"`
}

// ReviewReadyEvent 周报就绪事件
type ReviewReadyEvent struct {
	UserID    string    `json:"user_id"`
	ReviewID  string    `json:"review_id"`
	WeekStart time.Time `json:"week_start"`
}

// Notifier 通知发射器
// 所有方法都是 fire-and-forget：核心不等待送达，失败只记录日志
type Notifier interface {
	AchievementUnlocked(ctx context.Context, event AchievementUnlockedEvent)
	PatternInsight(ctx context.Context, event PatternInsightEvent)
	Reengagement(ctx context.Context, event ReengagementEvent)
	WeeklyReviewReady(ctx context.Context, event ReviewReadyEvent)
}

// ShouldReengage 召回提醒触发条件
// 仅在不活跃天数恰好为 7 或 14 时触发（精确匹配而非 ≥，这是刻意的产品设计）
func ShouldReengage(daysInactive int) bool {
	return daysInactive == 7 || daysInactive == 14
}

// Nop 空实现（测试和禁用通知时使用）
type Nop struct{}

func (Nop) AchievementUnlocked(ctx context.Context, event AchievementUnlockedEvent) {}
func (Nop) PatternInsight(ctx context.Context, event PatternInsightEvent)           {}
func (Nop) Reengagement(ctx context.Context, event ReengagementEvent)               {}
func (Nop) WeeklyReviewReady(ctx context.Context, event ReviewReadyEvent)           {}

// Multi 将事件扇出给多个发射器
type Multi []Notifier

func (m Multi) AchievementUnlocked(ctx context.Context, event AchievementUnlockedEvent) {
	for _, n := range m {
		n.AchievementUnlocked(ctx, event)
	}
}

func (m Multi) PatternInsight(ctx context.Context, event PatternInsightEvent) {
	for _, n := range m {
		n.PatternInsight(ctx, event)
	}
}

func (m Multi) Reengagement(ctx context.Context, event ReengagementEvent) {
	for _, n := range m {
		n.Reengagement(ctx, event)
	}
}

func (m Multi) WeeklyReviewReady(ctx context.Context, event ReviewReadyEvent) {
	for _, n := range m {
		n.WeeklyReviewReady(ctx, event)
	}
}
