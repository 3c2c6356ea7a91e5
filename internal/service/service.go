package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodlog-insights/internal/achievements"
	"moodlog-insights/internal/analytics"
	"moodlog-insights/internal/config"
	"moodlog-insights/internal/journal"
	"moodlog-insights/internal/models"
	"moodlog-insights/internal/notifier"
	"moodlog-insights/internal/repository"
	"moodlog-insights/internal/review"

	"moodlog-insights/pkg/database"
	rediscommon "moodlog-insights/pkg/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrReviewInvalid 周报未通过展示前的有效性检查
var ErrReviewInvalid = errors.New("weekly review failed validity check")

// AchievementStatus 成就目录条目及该用户的解锁状态（展示视图）
type AchievementStatus struct {
	models.AchievementDefinition
	Unlocked bool `json:"unlocked"`
}

// InsightsService 心情洞察服务
// 组装仓库、规则引擎、周报构建器和通知发射器，并保证同一用户的
// 成就评估与周报重建串行执行（按用户互斥锁）
type InsightsService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client

	entryRepo  *repository.EntryRepository
	reviewRepo *repository.ReviewRepository
	catalog    *achievements.Catalog
	journal    *journal.Journal
	builder    *review.Builder
	cache      *review.Cache
	state      *achievements.StateManager
	notifier   notifier.Notifier

	userLocks sync.Map // userID → *sync.Mutex
}

// NewInsightsService 创建心情洞察服务
func NewInsightsService(cfg *config.Config, logger *zap.Logger) (*InsightsService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化 Redis（本地缓存 + 通知事件流）
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 加载声明式成就目录
	catalog, err := achievements.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	entryRepo := repository.NewEntryRepository(db, logger)
	reviewRepo := repository.NewReviewRepository(db, logger)
	unlockRepo := repository.NewUnlockRepository(db, logger)

	// 通知发射器：总是发流事件，配置了推送网关时同时推送
	notifiers := notifier.Multi{
		notifier.NewStreamNotifier(redisClient, cfg.Insights.NotificationStream, logger),
	}
	if cfg.Insights.Push.BaseURL != "" {
		notifiers = append(notifiers, notifier.NewPushNotifier(
			cfg.Insights.Push.BaseURL, cfg.Insights.Push.APIKey, logger,
		))
	}

	engine := achievements.NewEngine(catalog, logger)
	state := achievements.NewStateManager(achievements.NewRedisKVStore(redisClient), unlockRepo, logger)
	cache := review.NewCache(review.NewRedisKVStore(redisClient), logger)

	builder := review.NewBuilder(entryRepo, reviewRepo, cache, notifiers, logger)
	builder.SetAwaitPolicy(
		cfg.Insights.Review.AwaitAttempts,
		time.Duration(cfg.Insights.Review.AwaitBackoff)*time.Second,
	)

	jnl := journal.NewJournal(entryRepo, engine, catalog, state, notifiers, logger)

	return &InsightsService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		entryRepo:   entryRepo,
		reviewRepo:  reviewRepo,
		catalog:     catalog,
		journal:     jnl,
		builder:     builder,
		cache:       cache,
		state:       state,
		notifier:    notifiers,
	}, nil
}

// userLock 获取指定用户的互斥锁
func (s *InsightsService) userLock(userID string) *sync.Mutex {
	lock, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Start 启动服务（每日边界检查循环，阻塞直到 ctx 取消）
func (s *InsightsService) Start(ctx context.Context) error {
	s.logger.Info("Starting mood insights service",
		zap.Int("daily_check_hour", s.config.Insights.DailyCheckHour),
		zap.String("notification_stream", s.config.Insights.NotificationStream),
	)

	// 启动时先执行一次（补上停机期间错过的边界检查）
	s.runDailyChecks(ctx)

	for {
		// 计算到下一次每日检查时刻的等待时间
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(),
			s.config.Insights.DailyCheckHour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		timer := time.NewTimer(next.Sub(now))

		s.logger.Info("Next daily check scheduled",
			zap.Time("next_run", next),
		)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.runDailyChecks(ctx)
		}
	}
}

// runDailyChecks 对所有用户执行每日边界检查：周报生成 + 召回提醒
func (s *InsightsService) runDailyChecks(ctx context.Context) {
	now := time.Now()

	userIDs, err := s.entryRepo.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list users for daily check", zap.Error(err))
		return
	}

	s.logger.Info("Running daily checks",
		zap.Int("user_count", len(userIDs)),
	)

	successCount := 0
	errorCount := 0

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runUserDailyCheck(ctx, userID, now); err != nil {
				s.logger.Error("Daily check failed for user",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				errorCount++
			} else {
				successCount++
			}
		}
	}

	s.logger.Info("Completed daily checks",
		zap.Int("success_count", successCount),
		zap.Int("error_count", errorCount),
	)
}

// runUserDailyCheck 单个用户的每日检查（持该用户的锁）
func (s *InsightsService) runUserDailyCheck(ctx context.Context, userID string, now time.Time) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.builder.RunDailyCheck(ctx, userID, now); err != nil {
		return fmt.Errorf("weekly review check: %w", err)
	}

	// 召回提醒：不活跃天数恰好为 7 或 14 时触发
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("reengagement check: %w", err)
	}
	if days := analytics.DaysSinceLastEntry(entries, now); notifier.ShouldReengage(days) {
		s.notifier.Reengagement(ctx, notifier.ReengagementEvent{
			UserID:       userID,
			DaysInactive: days,
		})
	}

	return nil
}

// SaveEntry 保存条目（同日已有条目时返回 PendingConfirmation）
func (s *InsightsService) SaveEntry(ctx context.Context, userID string, entry models.MoodEntry) (*journal.SaveResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.journal.Save(ctx, userID, entry)
}

// ConfirmReplace 确认替换同日条目
func (s *InsightsService) ConfirmReplace(ctx context.Context, userID string) (*journal.SaveResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.journal.ConfirmReplace(ctx, userID)
}

// CancelReplace 取消替换，存储保持不变
func (s *InsightsService) CancelReplace(userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.journal.Cancel(userID)
}

// EditEntry 编辑既有条目，并重建所有区间包含该条目日期的周报
func (s *InsightsService) EditEntry(ctx context.Context, userID string, entry models.MoodEntry) (*journal.SaveResult, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.journal.Edit(ctx, userID, entry)
	if err != nil {
		return nil, err
	}

	if err := s.builder.RebuildForEntry(ctx, userID, entry.Date); err != nil {
		// 条目编辑已提交；重建失败单独上报
		return result, fmt.Errorf("entry saved but review rebuild failed: %w", err)
	}

	return result, nil
}

// MoodTrend 返回指定范围的心情趋势序列
func (s *InsightsService) MoodTrend(ctx context.Context, userID string, rng analytics.TrendRange) ([]analytics.TrendPoint, error) {
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.MoodTrend(entries, rng, time.Now()), nil
}

// FactorImpacts 返回因素影响统计
func (s *InsightsService) FactorImpacts(ctx context.Context, userID string) ([]analytics.FactorImpact, error) {
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.FactorImpacts(entries), nil
}

// WeeklyAverages 返回按周聚合的平均心情
func (s *InsightsService) WeeklyAverages(ctx context.Context, userID string) ([]analytics.WeeklyAverage, error) {
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.WeeklyAverages(entries), nil
}

// Consistency 返回最近一周的心情稳定度（0..1）
func (s *InsightsService) Consistency(ctx context.Context, userID string) (float64, error) {
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return 0, err
	}
	return analytics.Consistency(entries, time.Now()), nil
}

// Insights 返回自然语言洞察列表
func (s *InsightsService) Insights(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.entryRepo.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Insights(entries, time.Now()), nil
}

// Achievements 返回成就目录及该用户的解锁状态
func (s *InsightsService) Achievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	unlocked, err := s.state.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]AchievementStatus, 0, len(s.catalog.Achievements))
	for _, def := range s.catalog.Achievements {
		statuses = append(statuses, AchievementStatus{
			AchievementDefinition: def,
			Unlocked:              unlocked[def.Type],
		})
	}
	return statuses, nil
}

// CurrentReview 返回当前（上一整周的）周报
// 先查缓存，未命中时轮询存储等待就绪；展示前做有效性检查
func (s *InsightsService) CurrentReview(ctx context.Context, userID string) (*models.WeeklyReview, error) {
	weekStart := analytics.WeekStart(time.Now()).AddDate(0, 0, -7)

	if cached, err := s.cache.GetCurrent(ctx, userID); err == nil {
		if models.SameDay(cached.WeekStart, weekStart) {
			if !review.IsValid(cached) {
				return nil, ErrReviewInvalid
			}
			return cached, nil
		}
	} else if err != review.ErrCacheMiss {
		s.logger.Warn("Failed to read review cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	r, err := s.builder.AwaitReady(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}
	if !review.IsValid(r) {
		return nil, ErrReviewInvalid
	}
	return r, nil
}

// Stop 停止服务
func (s *InsightsService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping mood insights service")

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Mood insights service stopped")
	return nil
}
