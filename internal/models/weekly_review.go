package models

import "time"

// FactorStat 周报中的因素统计
type FactorStat struct {
	Name     string     `json:"name"`
	Positive int        `json:"positive"`
	Negative int        `json:"negative"`
	Impact   FactorSign `json:"impact"` // positive_count > negative_count 时为 positive，否则 negative
}

// MoodSummary 周报心情摘要
type MoodSummary struct {
	Average    float64      `json:"average"`
	Highest    float64      `json:"highest"`
	Lowest     float64      `json:"lowest"`
	BestDay    time.Time    `json:"best_day"` // 最高分条目所在日（并列取先遇到的）
	TopFactors []FactorStat `json:"top_factors,omitempty"` // 最多3个
}

// Highlight 周报精选条目（有照片或非空备注的条目）
type Highlight struct {
	EntryID   string    `json:"entry_id"`
	Date      time.Time `json:"date"`
	MoodLevel float64   `json:"mood_level"`
	Note      string    `json:"note,omitempty"`
	PhotoRef  *string   `json:"photo_ref,omitempty"`
}

// WeeklyReview 周报快照（创建后不可变，仅 viewed 标记和编辑重建路径除外）
// 区间为半开区间 [WeekStart, WeekEnd)，周一 00:00 到下周一 00:00
// 每个 WeekStart 最多存在一份周报（写入时保证，非数据库约束）
type WeeklyReview struct {
	ID         string      `json:"review_id"`
	UserID     string      `json:"user_id"`
	WeekStart  time.Time   `json:"week_start"`
	WeekEnd    time.Time   `json:"week_end"`
	Summary    MoodSummary `json:"mood_summary"`
	Highlights []Highlight `json:"highlights,omitempty"`
	PhotoRefs  []string    `json:"photo_refs,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
	Viewed     bool        `json:"viewed"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Contains 判断某时间是否落在周报区间内（半开区间）
func (r *WeeklyReview) Contains(t time.Time) bool {
	day := DayOf(t)
	return !day.Before(DayOf(r.WeekStart)) && day.Before(DayOf(r.WeekEnd))
}
