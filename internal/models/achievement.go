package models

import "time"

// AchievementType 成就类型标识（稳定的字符串ID，来自声明式目录）
type AchievementType string

// AchievementRule 成就解锁条件类别
type AchievementRule string

const (
	// RuleEntryCount 累计条目数达到阈值
	RuleEntryCount AchievementRule = "entry_count"
	// RuleStreak 当前连续记录天数达到阈值
	RuleStreak AchievementRule = "streak"
	// RuleFactorUse 指定因素在历史上出现过（不区分正负）
	RuleFactorUse AchievementRule = "factor_use"
	// RuleFactorSampler 目录内全部因素均出现过
	RuleFactorSampler AchievementRule = "factor_sampler"
	// RuleMoodVariety 观察到的心情分桶数达到阈值
	RuleMoodVariety AchievementRule = "mood_variety"
	// RuleNoteCount 非空备注（去除首尾空白）条目数达到阈值
	RuleNoteCount AchievementRule = "note_count"
)

// AchievementDefinition 成就目录条目（进程启动时从声明式表加载，不可变）
type AchievementDefinition struct {
	Type        AchievementType `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Rule        AchievementRule `json:"rule"`
	Threshold   int             `json:"threshold,omitempty"` // entry_count/streak/mood_variety/note_count
	Factor      string          `json:"factor,omitempty"`    // factor_use
}

// UnlockedAchievement 已解锁成就记录（远端存储一行）
type UnlockedAchievement struct {
	UserID     string          `json:"user_id"`
	Type       AchievementType `json:"achievement_type"`
	UnlockedAt time.Time       `json:"unlocked_at"`
}
