package analytics

import (
	"sort"
	"time"

	"moodlog-insights/internal/models"
)

// CurrentStreak 计算当前连续记录天数
// 按日期升序遍历，相邻条目自然日差恰好为 1 时延长计数，否则重置为 1
// 空输入返回 0（假定上游已保证每自然日最多一条）
func CurrentStreak(entries []models.MoodEntry) int {
	if len(entries) == 0 {
		return 0
	}

	sorted := make([]models.MoodEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	streak := 1
	for i := 1; i < len(sorted); i++ {
		if models.DaysBetween(sorted[i-1].Date, sorted[i].Date) == 1 {
			streak++
		} else {
			streak = 1
		}
	}
	return streak
}

// LastEntryDate 返回最近一条记录的日期
func LastEntryDate(entries []models.MoodEntry) (time.Time, bool) {
	if len(entries) == 0 {
		return time.Time{}, false
	}
	last := entries[0].Date
	for _, e := range entries[1:] {
		if e.Date.After(last) {
			last = e.Date
		}
	}
	return last, true
}

// DaysSinceLastEntry 返回距最近一条记录的自然日数，无记录时返回 -1
func DaysSinceLastEntry(entries []models.MoodEntry, now time.Time) int {
	last, ok := LastEntryDate(entries)
	if !ok {
		return -1
	}
	return models.DaysBetween(last, now)
}
