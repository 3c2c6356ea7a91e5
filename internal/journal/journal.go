package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodlog-insights/internal/achievements"
	"moodlog-insights/internal/analytics"
	"moodlog-insights/internal/models"
	"moodlog-insights/internal/notifier"

	"go.uber.org/zap"
)

var (
	// ErrPendingConfirmation 已有待确认条目时不接受新的保存请求
	ErrPendingConfirmation = errors.New("a pending entry is awaiting confirmation")
	// ErrNoPendingEntry confirm/cancel 时不存在待确认条目
	ErrNoPendingEntry = errors.New("no pending entry to resolve")
)

// EntryStore 条目存储边界（外部文档存储协作方）
type EntryStore interface {
	ListEntries(ctx context.Context, userID string) ([]models.MoodEntry, error)
	PutEntry(ctx context.Context, userID string, entry models.MoodEntry) (string, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
}

// SaveStatus 保存结果状态
type SaveStatus string

const (
	// StatusCommitted 条目已提交
	StatusCommitted SaveStatus = "committed"
	// StatusPendingConfirmation 同一自然日已有条目，等待确认替换或取消
	StatusPendingConfirmation SaveStatus = "pending_confirmation"
)

// SaveResult 保存操作的结果
type SaveResult struct {
	Status        SaveStatus
	EntryID       string
	NewlyUnlocked []models.AchievementType
}

// Journal 日记管理器
// 实现同日重复条目的确认状态机：Idle → PendingConfirmation → Idle
// 不变量：已提交工作集中任意自然日最多存在一条条目
type Journal struct {
	entries  EntryStore
	engine   *achievements.Engine
	catalog  *achievements.Catalog
	state    *achievements.StateManager
	notifier notifier.Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]models.MoodEntry // userID → 待确认候选条目
}

// NewJournal 创建日记管理器
func NewJournal(
	entries EntryStore,
	engine *achievements.Engine,
	catalog *achievements.Catalog,
	state *achievements.StateManager,
	n notifier.Notifier,
	logger *zap.Logger,
) *Journal {
	return &Journal{
		entries:  entries,
		engine:   engine,
		catalog:  catalog,
		state:    state,
		notifier: n,
		logger:   logger,
		pending:  make(map[string]models.MoodEntry),
	}
}

// Save 保存一条新条目
// 当同一自然日已有条目时进入 PendingConfirmation，既有条目不被触碰，
// 由调用方通过 ConfirmReplace / Cancel 决定去留
func (j *Journal) Save(ctx context.Context, userID string, entry models.MoodEntry) (*SaveResult, error) {
	j.mu.Lock()
	_, hasPending := j.pending[userID]
	j.mu.Unlock()
	if hasPending {
		return nil, ErrPendingConfirmation
	}

	existing, err := j.entries.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	for _, e := range existing {
		if models.SameDay(e.Date, entry.Date) {
			j.mu.Lock()
			j.pending[userID] = entry
			j.mu.Unlock()

			j.logger.Info("Entry save requires confirmation, same-day entry exists",
				zap.String("user_id", userID),
				zap.Time("entry_date", entry.Date),
				zap.String("existing_entry_id", e.ID),
			)
			return &SaveResult{Status: StatusPendingConfirmation}, nil
		}
	}

	return j.commit(ctx, userID, entry)
}

// ConfirmReplace 确认替换：删除该自然日最近存储的条目，提交候选条目
// 删除失败时中止转换并返回错误（保持 PendingConfirmation，不提交重复条目）
func (j *Journal) ConfirmReplace(ctx context.Context, userID string) (*SaveResult, error) {
	j.mu.Lock()
	candidate, ok := j.pending[userID]
	j.mu.Unlock()
	if !ok {
		return nil, ErrNoPendingEntry
	}

	existing, err := j.entries.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	// 找到该自然日最近存储的条目
	var target *models.MoodEntry
	for i := range existing {
		e := existing[i]
		if !models.SameDay(e.Date, candidate.Date) {
			continue
		}
		if target == nil || e.Date.After(target.Date) {
			target = &existing[i]
		}
	}

	if target != nil {
		if err := j.entries.DeleteEntry(ctx, userID, target.ID); err != nil {
			// 中止转换：既有状态保持原样，不提交候选
			j.logger.Error("Failed to delete same-day entry, aborting replace",
				zap.String("user_id", userID),
				zap.String("entry_id", target.ID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to delete existing entry: %w", err)
		}
	}

	result, err := j.commit(ctx, userID, candidate)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	delete(j.pending, userID)
	j.mu.Unlock()

	return result, nil
}

// Cancel 取消替换：丢弃候选条目，存储保持不变
func (j *Journal) Cancel(userID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.pending[userID]; !ok {
		return ErrNoPendingEntry
	}
	delete(j.pending, userID)
	return nil
}

// HasPending 是否存在待确认条目（UI 状态查询）
func (j *Journal) HasPending(userID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.pending[userID]
	return ok
}

// Edit 编辑既有条目（需要已持久化的 ID），随后照常运行成就评估
// 周报重建由上层在编辑成功后触发
func (j *Journal) Edit(ctx context.Context, userID string, entry models.MoodEntry) (*SaveResult, error) {
	if entry.ID == "" {
		return nil, fmt.Errorf("cannot edit entry without id")
	}
	return j.commit(ctx, userID, entry)
}

// commit 提交条目并运行提交后流水线（因素累计、成就评估、通知发射）
func (j *Journal) commit(ctx context.Context, userID string, entry models.MoodEntry) (*SaveResult, error) {
	entryID, err := j.entries.PutEntry(ctx, userID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to put entry: %w", err)
	}

	j.logger.Info("Entry committed",
		zap.String("user_id", userID),
		zap.String("entry_id", entryID),
		zap.Time("entry_date", entry.Date),
		zap.Float64("mood_level", entry.MoodLevel),
	)

	newlyUnlocked := j.afterCommit(ctx, userID, entry)

	return &SaveResult{
		Status:        StatusCommitted,
		EntryID:       entryID,
		NewlyUnlocked: newlyUnlocked,
	}, nil
}

// afterCommit 提交后流水线
// 评估失败不回滚条目提交，只影响本次的解锁/通知
func (j *Journal) afterCommit(ctx context.Context, userID string, entry models.MoodEntry) []models.AchievementType {
	j.state.RecordUsedFactors(ctx, userID, entry.Factors)

	entries, err := j.entries.ListEntries(ctx, userID)
	if err != nil {
		j.logger.Error("Failed to reload entries for achievement evaluation",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	unlocked, err := j.state.Load(ctx, userID)
	if err != nil {
		j.logger.Error("Failed to load unlock state",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	usedFactors := j.state.LoadUsedFactors(ctx, userID)

	newlyUnlocked := j.engine.Evaluate(entries, unlocked, usedFactors)
	if len(newlyUnlocked) > 0 {
		j.state.Unlock(ctx, userID, unlocked, newlyUnlocked)

		now := time.Now()
		for _, t := range newlyUnlocked {
			title := string(t)
			if def, ok := j.catalog.Definition(t); ok {
				title = def.Title
			}
			j.notifier.AchievementUnlocked(ctx, notifier.AchievementUnlockedEvent{
				UserID:     userID,
				Type:       t,
				Title:      title,
				UnlockedAt: now,
			})
		}

		j.logger.Info("Achievements unlocked",
			zap.String("user_id", userID),
			zap.Int("count", len(newlyUnlocked)),
		)
	}

	// 有新洞察时发射第一条（避免每次提交都推送全部洞察）
	if insights := analytics.Insights(entries, entry.Date); len(insights) > 0 {
		j.notifier.PatternInsight(ctx, notifier.PatternInsightEvent{
			UserID:  userID,
			Insight: insights[0],
		})
	}

	return newlyUnlocked
}
