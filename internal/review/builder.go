package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"moodlog-insights/internal/analytics"
	"moodlog-insights/internal/models"
	"moodlog-insights/internal/notifier"

	"go.uber.org/zap"
)

// ErrReviewNotReady 有限次轮询后周报仍未就绪
var ErrReviewNotReady = errors.New("weekly review not ready")

// EntryStore 条目读取边界
type EntryStore interface {
	ListEntries(ctx context.Context, userID string) ([]models.MoodEntry, error)
}

// ReviewStore 周报存储边界
type ReviewStore interface {
	ListReviews(ctx context.Context, userID string) ([]models.WeeklyReview, error)
	PutReview(ctx context.Context, userID string, review models.WeeklyReview) (string, error)
}

// Builder 周报构建器
// 每日边界检查触发：仅当"今天"落在周边界（周一）时生成上一整周的快照
type Builder struct {
	entries  EntryStore
	reviews  ReviewStore
	cache    *Cache
	notifier notifier.Notifier
	logger   *zap.Logger

	// 就绪轮询策略（降级的重试，不是真正的取消机制）
	awaitAttempts int
	awaitBackoff  time.Duration
}

// NewBuilder 创建周报构建器
func NewBuilder(
	entries EntryStore,
	reviews ReviewStore,
	cache *Cache,
	n notifier.Notifier,
	logger *zap.Logger,
) *Builder {
	return &Builder{
		entries:       entries,
		reviews:       reviews,
		cache:         cache,
		notifier:      n,
		logger:        logger,
		awaitAttempts: 3,
		awaitBackoff:  2 * time.Second,
	}
}

// SetAwaitPolicy 覆盖就绪轮询策略（来自配置）
func (b *Builder) SetAwaitPolicy(attempts int, backoff time.Duration) {
	if attempts > 0 {
		b.awaitAttempts = attempts
	}
	if backoff > 0 {
		b.awaitBackoff = backoff
	}
}

// RunDailyCheck 每日边界检查
// 仅在 now 为周一时生成上一整周 [start, end) 的周报；
// 该周已有周报或该周无任何条目时均为 no-op
func (b *Builder) RunDailyCheck(ctx context.Context, userID string, now time.Time) (*models.WeeklyReview, error) {
	if now.Weekday() != time.Monday {
		return nil, nil
	}

	end := analytics.WeekStart(now)
	start := end.AddDate(0, 0, -7)

	existing, err := b.reviews.ListReviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	for _, r := range existing {
		if models.SameDay(r.WeekStart, start) {
			// 幂等：每个 weekStart 只存在一份周报
			return nil, nil
		}
	}

	weekEntries, err := b.entriesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(weekEntries) == 0 {
		return nil, nil
	}

	review := b.compose(userID, start, end, weekEntries, "", false)

	reviewID, err := b.reviews.PutReview(ctx, userID, review)
	if err != nil {
		return nil, fmt.Errorf("failed to persist review: %w", err)
	}
	review.ID = reviewID

	if b.cache != nil {
		if err := b.cache.SetCurrent(ctx, userID, &review); err != nil {
			b.logger.Warn("Failed to cache current review",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	b.notifier.WeeklyReviewReady(ctx, notifier.ReviewReadyEvent{
		UserID:    userID,
		ReviewID:  reviewID,
		WeekStart: start,
	})

	b.logger.Info("Weekly review created",
		zap.String("user_id", userID),
		zap.String("review_id", reviewID),
		zap.Time("week_start", start),
		zap.Int("entry_count", len(weekEntries)),
	)

	return &review, nil
}

// RebuildForEntry 条目被编辑后的重建路径
// 对每个区间包含该条目日期的周报做全量重算（保留原ID并标记为已读），
// 正确性优先于效率：数据量小，不做增量修补
func (b *Builder) RebuildForEntry(ctx context.Context, userID string, entryDate time.Time) error {
	reviews, err := b.reviews.ListReviews(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	for _, r := range reviews {
		if !r.Contains(entryDate) {
			continue
		}

		weekEntries, err := b.entriesInRange(ctx, userID, models.DayOf(r.WeekStart), models.DayOf(r.WeekEnd))
		if err != nil {
			return err
		}

		rebuilt := b.compose(userID, r.WeekStart, r.WeekEnd, weekEntries, r.ID, true)
		rebuilt.CreatedAt = r.CreatedAt

		if _, err := b.reviews.PutReview(ctx, userID, rebuilt); err != nil {
			return fmt.Errorf("failed to persist rebuilt review: %w", err)
		}

		b.logger.Info("Weekly review rebuilt after entry edit",
			zap.String("user_id", userID),
			zap.String("review_id", r.ID),
			zap.Time("week_start", r.WeekStart),
		)
	}

	return nil
}

// AwaitReady 等待指定周的周报就绪（有限次数 + 固定退避的轮询）
func (b *Builder) AwaitReady(ctx context.Context, userID string, weekStart time.Time) (*models.WeeklyReview, error) {
	for attempt := 1; attempt <= b.awaitAttempts; attempt++ {
		reviews, err := b.reviews.ListReviews(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews: %w", err)
		}
		for i := range reviews {
			if models.SameDay(reviews[i].WeekStart, weekStart) {
				return &reviews[i], nil
			}
		}

		if attempt == b.awaitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.awaitBackoff):
		}
	}
	return nil, ErrReviewNotReady
}

// IsValid 周报展示前的有效性检查
// 当前行为与参考实现一致：区间合法且三个心情值各自非负
// 更强的不变量 lowest ≤ average ≤ highest 未强制（记录为开放选项，不默默收紧）
func IsValid(r *models.WeeklyReview) bool {
	if !r.WeekStart.Before(r.WeekEnd) {
		return false
	}
	return r.Summary.Average >= 0 && r.Summary.Highest >= 0 && r.Summary.Lowest >= 0
}

// entriesInRange 读取并过滤出 [start, end) 内的条目，按日期升序
func (b *Builder) entriesInRange(ctx context.Context, userID string, start, end time.Time) ([]models.MoodEntry, error) {
	all, err := b.entries.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	var inRange []models.MoodEntry
	for _, e := range all {
		day := e.Day()
		if !day.Before(start) && day.Before(end) {
			inRange = append(inRange, e)
		}
	}
	sort.Slice(inRange, func(i, j int) bool {
		return inRange[i].Date.Before(inRange[j].Date)
	})
	return inRange, nil
}

// compose 由一周的条目构建周报（摘要 + 精选），entries 需按日期升序
func (b *Builder) compose(userID string, start, end time.Time, entries []models.MoodEntry, reviewID string, viewed bool) models.WeeklyReview {
	review := models.WeeklyReview{
		ID:        reviewID,
		UserID:    userID,
		WeekStart: start,
		WeekEnd:   end,
		Viewed:    viewed,
	}
	if len(entries) == 0 {
		return review
	}

	review.Summary = composeSummary(entries)

	for _, e := range entries {
		hasNote := strings.TrimSpace(e.Note) != ""
		hasPhoto := e.PhotoRef != nil && *e.PhotoRef != ""

		// 精选 = 有照片或有非空备注（并集）
		if hasNote || hasPhoto {
			review.Highlights = append(review.Highlights, models.Highlight{
				EntryID:   e.ID,
				Date:      e.Date,
				MoodLevel: e.MoodLevel,
				Note:      e.Note,
				PhotoRef:  e.PhotoRef,
			})
		}
		if hasPhoto {
			review.PhotoRefs = append(review.PhotoRefs, *e.PhotoRef)
		}
		if hasNote {
			review.Notes = append(review.Notes, e.Note)
		}
	}

	return review
}

// composeSummary 计算心情摘要，entries 非空且按日期升序
func composeSummary(entries []models.MoodEntry) models.MoodSummary {
	summary := models.MoodSummary{
		Highest: entries[0].MoodLevel,
		Lowest:  entries[0].MoodLevel,
		BestDay: entries[0].Date,
	}

	var sum float64
	best := entries[0].MoodLevel
	for _, e := range entries {
		sum += e.MoodLevel
		if e.MoodLevel > summary.Highest {
			summary.Highest = e.MoodLevel
		}
		if e.MoodLevel < summary.Lowest {
			summary.Lowest = e.MoodLevel
		}
		// 最高分并列时取先遇到的（升序遍历即最早的一天）
		if e.MoodLevel > best {
			best = e.MoodLevel
			summary.BestDay = e.Date
		}
	}
	summary.Average = sum / float64(len(entries))
	summary.TopFactors = topFactors(entries, 3)

	return summary
}

// topFactors 按出现总次数取前 limit 个因素，并列时按名称升序保证确定性
func topFactors(entries []models.MoodEntry, limit int) []models.FactorStat {
	counts := make(map[string]*models.FactorStat)
	for _, e := range entries {
		for name, sign := range e.Factors {
			fs, ok := counts[name]
			if !ok {
				fs = &models.FactorStat{Name: name}
				counts[name] = fs
			}
			if sign == models.FactorPositive {
				fs.Positive++
			} else {
				fs.Negative++
			}
		}
	}

	stats := make([]models.FactorStat, 0, len(counts))
	for _, fs := range counts {
		if fs.Positive > fs.Negative {
			fs.Impact = models.FactorPositive
		} else {
			fs.Impact = models.FactorNegative
		}
		stats = append(stats, *fs)
	}

	sort.Slice(stats, func(i, j int) bool {
		ti := stats[i].Positive + stats[i].Negative
		tj := stats[j].Positive + stats[j].Negative
		if ti != tj {
			return ti > tj
		}
		return stats[i].Name < stats[j].Name
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
