package models

import "time"

// FactorSign 因素影响方向（正向/负向）
// 未记录的因素不出现在映射中（"未记录"不等于"中性"）
type FactorSign string

const (
	FactorPositive FactorSign = "positive"
	FactorNegative FactorSign = "negative"
)

// MoodEntry 心情日记条目（每用户每自然日最多一条，由上层保证）
type MoodEntry struct {
	ID        string                `json:"entry_id,omitempty"` // 持久化后才有值
	UserID    string                `json:"user_id"`
	Date      time.Time             `json:"date"`
	MoodLevel float64               `json:"mood_level"` // [0,10] 连续值
	Factors   map[string]FactorSign `json:"factors,omitempty"`
	Note      string                `json:"note,omitempty"`
	PhotoRef  *string               `json:"photo_ref,omitempty"` // 外部存储的不透明引用
}

// Day 返回条目所属自然日（本地日历，截断到当天零点）
func (e *MoodEntry) Day() time.Time {
	return DayOf(e.Date)
}

// DayOf 截断到自然日零点（保留时区）
func DayOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameDay 判断两个时间是否属于同一自然日
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween 计算两个时间之间的自然日差（b - a，按日历日计算）
// 先归一化到 UTC 日期再求差，避免夏令时导致的 23/25 小时日
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
