package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"moodlog-insights/internal/models"
)

func TestCurrentStreak(t *testing.T) {
	// 空输入
	assert.Equal(t, 0, CurrentStreak(nil))

	// 单条记录
	one := []models.MoodEntry{moodOn(day(2024, time.March, 11), 5)}
	assert.Equal(t, 1, CurrentStreak(one))

	// 连续三天
	run := []models.MoodEntry{
		moodOn(day(2024, time.March, 11), 5),
		moodOn(day(2024, time.March, 12), 6),
		moodOn(day(2024, time.March, 13), 7),
	}
	assert.Equal(t, 3, CurrentStreak(run))

	// 断档后重置：1、2、4 号 → 当前连续 1 天
	broken := []models.MoodEntry{
		moodOn(day(2024, time.March, 1), 5),
		moodOn(day(2024, time.March, 2), 6),
		moodOn(day(2024, time.March, 4), 7),
	}
	assert.Equal(t, 1, CurrentStreak(broken))

	// 输入乱序时也按日期排序处理
	shuffled := []models.MoodEntry{
		moodOn(day(2024, time.March, 13), 7),
		moodOn(day(2024, time.March, 11), 5),
		moodOn(day(2024, time.March, 12), 6),
	}
	assert.Equal(t, 3, CurrentStreak(shuffled))
}

func TestLastEntryDate(t *testing.T) {
	_, ok := LastEntryDate(nil)
	assert.False(t, ok)

	entries := []models.MoodEntry{
		moodOn(day(2024, time.March, 12), 6),
		moodOn(day(2024, time.March, 15), 7),
		moodOn(day(2024, time.March, 11), 5),
	}
	last, ok := LastEntryDate(entries)
	assert.True(t, ok)
	assert.Equal(t, day(2024, time.March, 15), last)
}

func TestDaysSinceLastEntry(t *testing.T) {
	// 无记录
	assert.Equal(t, -1, DaysSinceLastEntry(nil, day(2024, time.March, 20)))

	entries := []models.MoodEntry{moodOn(day(2024, time.March, 13), 6)}

	// 当天记录
	assert.Equal(t, 0, DaysSinceLastEntry(entries, day(2024, time.March, 13)))

	// 恰好一周未记录
	assert.Equal(t, 7, DaysSinceLastEntry(entries, day(2024, time.March, 20)))
}
