package achievements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moodlog-insights/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	return NewEngine(catalog, zap.NewNop())
}

// consecutiveEntries 生成从 start 起连续 len(levels) 天的条目
func consecutiveEntries(start time.Time, levels ...float64) []models.MoodEntry {
	entries := make([]models.MoodEntry, 0, len(levels))
	for i, lv := range levels {
		entries = append(entries, models.MoodEntry{
			ID:        "e-" + start.AddDate(0, 0, i).Format("20060102"),
			UserID:    "user-1",
			Date:      start.AddDate(0, 0, i),
			MoodLevel: lv,
		})
	}
	return entries
}

func contains(types []models.AchievementType, want models.AchievementType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestEvaluate_FirstLogExactlyOnFirstEntry(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local)

	// 恰好第一条才触发
	newly := engine.Evaluate(consecutiveEntries(start, 6), nil, nil)
	assert.True(t, contains(newly, "first_log"))

	// 第二条之后即使从未解锁也不再回溯触发
	newly = engine.Evaluate(consecutiveEntries(start, 6, 7), nil, nil)
	assert.False(t, contains(newly, "first_log"))
}

func TestEvaluate_Idempotent(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local)
	entries := consecutiveEntries(start, 5, 6, 7)

	first := engine.Evaluate(entries, nil, nil)
	require.NotEmpty(t, first)

	unlocked := make(map[models.AchievementType]bool)
	for _, at := range first {
		unlocked[at] = true
	}

	// 同样的条目集重复评估不再产生新解锁
	second := engine.Evaluate(entries, unlocked, nil)
	assert.Empty(t, second)
}

func TestEvaluate_StreakThresholds(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	levels := make([]float64, 7)
	for i := range levels {
		levels[i] = 5
	}
	newly := engine.Evaluate(consecutiveEntries(start, levels...), nil, nil)

	assert.True(t, contains(newly, "streak_3"))
	assert.True(t, contains(newly, "streak_7"))
	assert.False(t, contains(newly, "streak_30"))
}

func TestEvaluate_StreakBrokenByGap(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	// 连续两天 + 断档一天：当前连续天数重置为 1
	entries := consecutiveEntries(start, 5, 6)
	entries = append(entries, models.MoodEntry{
		ID:        "e-gap",
		UserID:    "user-1",
		Date:      start.AddDate(0, 0, 3),
		MoodLevel: 7,
	})

	newly := engine.Evaluate(entries, nil, nil)
	assert.False(t, contains(newly, "streak_3"))
}

func TestEvaluate_FactorUse(t *testing.T) {
	engine := newTestEngine(t)
	entries := []models.MoodEntry{{
		ID:        "e-1",
		UserID:    "user-1",
		Date:      time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local),
		MoodLevel: 6,
		Factors: map[string]models.FactorSign{
			"Exercise": models.FactorPositive,
			"Work":     models.FactorNegative, // Work 无对应因素成就
		},
	}}

	newly := engine.Evaluate(entries, nil, nil)
	assert.True(t, contains(newly, "factor_exercise"))
	assert.False(t, contains(newly, "factor_sleep"))
}

func TestEvaluate_FactorUse_HistoricalSetSurvivesReplacement(t *testing.T) {
	engine := newTestEngine(t)

	// 当前条目集不含 Sleep，但历史累计集合中已有：替换条目不会收回成就
	entries := []models.MoodEntry{{
		ID:        "e-1",
		UserID:    "user-1",
		Date:      time.Date(2024, time.March, 11, 0, 0, 0, 0, time.Local),
		MoodLevel: 6,
	}}
	used := map[string]bool{"Sleep": true}

	newly := engine.Evaluate(entries, nil, used)
	assert.True(t, contains(newly, "factor_sleep"))
}

func TestEvaluate_FactorSampler(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	all := []string{"Exercise", "Social", "Food", "Sleep", "Weather", "Health", "Work", "Family"}

	// 只用 7 个因素：不触发
	partial := map[string]bool{}
	for _, name := range all[:7] {
		partial[name] = true
	}
	newly := engine.Evaluate(consecutiveEntries(start, 5), nil, partial)
	assert.False(t, contains(newly, "factor_sampler"))

	// 全部 8 个因素：触发
	full := map[string]bool{}
	for _, name := range all {
		full[name] = true
	}
	newly = engine.Evaluate(consecutiveEntries(start, 5), nil, full)
	assert.True(t, contains(newly, "factor_sampler"))
}

func TestEvaluate_MoodVariety(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	// 四个桶：不触发
	newly := engine.Evaluate(consecutiveEntries(start, 1, 3, 5, 7), nil, nil)
	assert.False(t, contains(newly, "mood_variety"))

	// 五个桶全覆盖：触发
	newly = engine.Evaluate(consecutiveEntries(start, 1, 3, 5, 7, 9), nil, nil)
	assert.True(t, contains(newly, "mood_variety"))
}

func TestEvaluate_NoteCountIgnoresBlankNotes(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	entries := consecutiveEntries(start, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)
	for i := range entries[:9] {
		entries[i].Note = "a real note"
	}
	// 纯空白备注不计数
	entries[9].Note = "   \n"

	newly := engine.Evaluate(entries, nil, nil)
	assert.False(t, contains(newly, "note_taker"))

	entries[9].Note = "and one more"
	newly = engine.Evaluate(entries, nil, nil)
	assert.True(t, contains(newly, "note_taker"))
}

func TestEvaluate_EntryCountThresholds(t *testing.T) {
	engine := newTestEngine(t)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)

	levels := make([]float64, 15)
	for i := range levels {
		levels[i] = 5
	}

	newly := engine.Evaluate(consecutiveEntries(start, levels[:10]...), nil, nil)
	assert.True(t, contains(newly, "dedicated_diarist"))
	assert.False(t, contains(newly, "fifteen_moods"))

	newly = engine.Evaluate(consecutiveEntries(start, levels...), nil, nil)
	assert.True(t, contains(newly, "fifteen_moods"))
}

func TestMoodBucket(t *testing.T) {
	assert.Equal(t, "very_low", MoodBucket(0))
	assert.Equal(t, "very_low", MoodBucket(1.9))
	assert.Equal(t, "low", MoodBucket(2))
	assert.Equal(t, "neutral", MoodBucket(4))
	assert.Equal(t, "high", MoodBucket(6))
	assert.Equal(t, "very_high", MoodBucket(8))
	assert.Equal(t, "very_high", MoodBucket(10))
}
