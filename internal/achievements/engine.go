package achievements

import (
	"strings"

	"moodlog-insights/internal/analytics"
	"moodlog-insights/internal/models"

	"go.uber.org/zap"
)

// Engine 成就规则引擎（无状态评估，每次条目提交成功后运行）
type Engine struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewEngine 创建成就规则引擎
func NewEngine(catalog *Catalog, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		logger:  logger,
	}
}

// entryStats 一次遍历得到的聚合状态（所有规则共用）
type entryStats struct {
	total       int
	streak      int
	noteCount   int
	buckets     map[string]bool
	usedFactors map[string]bool
}

// Evaluate 评估成就目录，返回本次新解锁的成就类型
// 规则相互独立且各自幂等：已解锁的成就重复评估不会再次返回
// usedFactors 为历史累计使用过的因素集合（独立于当前条目集，替换条目不会缩小它）
func (e *Engine) Evaluate(
	entries []models.MoodEntry,
	unlocked map[models.AchievementType]bool,
	usedFactors map[string]bool,
) []models.AchievementType {
	stats := e.collectStats(entries, usedFactors)

	var newlyUnlocked []models.AchievementType
	for _, def := range e.catalog.Achievements {
		if unlocked[def.Type] {
			continue
		}
		if e.satisfied(def, stats) {
			newlyUnlocked = append(newlyUnlocked, def.Type)
		}
	}

	if len(newlyUnlocked) > 0 {
		e.logger.Debug("Achievement evaluation produced new unlocks",
			zap.Int("entry_count", stats.total),
			zap.Int("streak", stats.streak),
			zap.Int("newly_unlocked", len(newlyUnlocked)),
		)
	}

	return newlyUnlocked
}

// collectStats 汇总规则评估所需的聚合状态
func (e *Engine) collectStats(entries []models.MoodEntry, usedFactors map[string]bool) entryStats {
	stats := entryStats{
		total:       len(entries),
		streak:      analytics.CurrentStreak(entries),
		buckets:     make(map[string]bool),
		usedFactors: make(map[string]bool, len(usedFactors)),
	}

	// 累计因素集合：历史集合与当前条目集取并集（只增不减）
	for name := range usedFactors {
		stats.usedFactors[name] = true
	}

	for _, entry := range entries {
		stats.buckets[MoodBucket(entry.MoodLevel)] = true
		if strings.TrimSpace(entry.Note) != "" {
			stats.noteCount++
		}
		for name := range entry.Factors {
			stats.usedFactors[name] = true
		}
	}

	return stats
}

// satisfied 判断单条成就定义的解锁条件是否满足
func (e *Engine) satisfied(def models.AchievementDefinition, stats entryStats) bool {
	switch def.Rule {
	case models.RuleEntryCount:
		// FirstLog 的阈值为 1，语义是"恰好第一条"；其余为"达到阈值"
		if def.Threshold == 1 {
			return stats.total == 1
		}
		return stats.total >= def.Threshold
	case models.RuleStreak:
		return stats.streak >= def.Threshold
	case models.RuleFactorUse:
		return stats.usedFactors[def.Factor]
	case models.RuleFactorSampler:
		for _, name := range e.catalog.Factors {
			if !stats.usedFactors[name] {
				return false
			}
		}
		return len(e.catalog.Factors) > 0
	case models.RuleMoodVariety:
		return len(stats.buckets) >= def.Threshold
	case models.RuleNoteCount:
		return stats.noteCount >= def.Threshold
	}
	return false
}

// MoodBucket 心情分桶
// [0,2) very_low, [2,4) low, [4,6) neutral, [6,8) high, [8,10] very_high
func MoodBucket(level float64) string {
	switch {
	case level < 2:
		return "very_low"
	case level < 4:
		return "low"
	case level < 6:
		return "neutral"
	case level < 8:
		return "high"
	default:
		return "very_high"
	}
}
