package achievements

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"moodlog-insights/internal/models"

	"go.uber.org/zap"
)

// RemoteUnlockStore 远端解锁状态存储（冲突时以远端为权威）
type RemoteUnlockStore interface {
	LoadUnlocked(ctx context.Context, userID string) ([]models.UnlockedAchievement, error)
	SaveUnlocked(ctx context.Context, userID string, types []models.AchievementType) error
}

// StateManager 解锁状态管理器
// 解锁集合冗余保存在两处：本地 KV 缓存（快）+ 远端存储（权威）
// 合并规则为并集（只增不减，CRDT 风格），这是刻意设计而非缺陷
type StateManager struct {
	kv     KVStore
	remote RemoteUnlockStore
	logger *zap.Logger
}

// NewStateManager 创建解锁状态管理器
func NewStateManager(kv KVStore, remote RemoteUnlockStore, logger *zap.Logger) *StateManager {
	return &StateManager{
		kv:     kv,
		remote: remote,
		logger: logger,
	}
}

func unlockedKey(userID string) string {
	return fmt.Sprintf("moodlog:user:%s:achievements", userID)
}

func usedFactorsKey(userID string) string {
	return fmt.Sprintf("moodlog:user:%s:factors_used", userID)
}

// Load 加载解锁集合：本地缓存 ∪ 远端（远端不可用时降级为仅本地，并记录日志）
func (m *StateManager) Load(ctx context.Context, userID string) (map[models.AchievementType]bool, error) {
	unlocked := make(map[models.AchievementType]bool)

	// 本地缓存
	if raw, err := m.kv.Get(ctx, unlockedKey(userID)); err == nil {
		var types []models.AchievementType
		if err := json.Unmarshal([]byte(raw), &types); err != nil {
			// 缓存损坏：跳过本地，按远端重建
			m.logger.Warn("Corrupt local unlock cache, ignoring",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else {
			for _, t := range types {
				unlocked[t] = true
			}
		}
	} else if err != ErrCacheMiss {
		m.logger.Warn("Failed to read local unlock cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	// 远端（权威）：并集合并，永不减少
	rows, err := m.remote.LoadUnlocked(ctx, userID)
	if err != nil {
		m.logger.Warn("Failed to load remote unlock state, using local only",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return unlocked, nil
	}
	for _, row := range rows {
		unlocked[row.Type] = true
	}

	return unlocked, nil
}

// Unlock 将新解锁的成就写入两处存储
// 本地缓存同步写入；远端写入失败只记录日志，不重试、不回滚本地解锁
func (m *StateManager) Unlock(ctx context.Context, userID string, unlocked map[models.AchievementType]bool, newly []models.AchievementType) {
	if len(newly) == 0 {
		return
	}

	for _, t := range newly {
		unlocked[t] = true
	}

	if err := m.writeLocal(ctx, unlockedKey(userID), typeList(unlocked)); err != nil {
		m.logger.Warn("Failed to write local unlock cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if err := m.remote.SaveUnlocked(ctx, userID, newly); err != nil {
		m.logger.Error("Failed to persist unlocks to remote store",
			zap.String("user_id", userID),
			zap.Int("unlock_count", len(newly)),
			zap.Error(err),
		)
	}
}

// LoadUsedFactors 加载历史累计使用过的因素集合
func (m *StateManager) LoadUsedFactors(ctx context.Context, userID string) map[string]bool {
	used := make(map[string]bool)
	raw, err := m.kv.Get(ctx, usedFactorsKey(userID))
	if err != nil {
		if err != ErrCacheMiss {
			m.logger.Warn("Failed to read used-factor cache",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return used
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		m.logger.Warn("Corrupt used-factor cache, ignoring",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return used
	}
	for _, name := range names {
		used[name] = true
	}
	return used
}

// RecordUsedFactors 将条目中出现的因素并入累计集合（只增不减）
func (m *StateManager) RecordUsedFactors(ctx context.Context, userID string, factors map[string]models.FactorSign) {
	if len(factors) == 0 {
		return
	}
	used := m.LoadUsedFactors(ctx, userID)
	changed := false
	for name := range factors {
		if !used[name] {
			used[name] = true
			changed = true
		}
	}
	if !changed {
		return
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.Marshal(names)
	if err != nil {
		m.logger.Warn("Failed to marshal used-factor set", zap.Error(err))
		return
	}
	if err := m.kv.Set(ctx, usedFactorsKey(userID), string(data), 0); err != nil {
		m.logger.Warn("Failed to write used-factor cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (m *StateManager) writeLocal(ctx context.Context, key string, types []models.AchievementType) error {
	data, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("failed to marshal unlock set: %w", err)
	}
	// 解锁集合不过期
	return m.kv.Set(ctx, key, string(data), 0)
}

func typeList(unlocked map[models.AchievementType]bool) []models.AchievementType {
	types := make([]models.AchievementType, 0, len(unlocked))
	for t := range unlocked {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
