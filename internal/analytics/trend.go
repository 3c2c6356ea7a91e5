package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"moodlog-insights/internal/models"

	"time"
)

// TrendRange 趋势时间范围
type TrendRange string

const (
	// RangeWeek 当前自然周（周一..周日，含两端）
	RangeWeek TrendRange = "week"
	// RangeMonth 距今 30 个自然日以内
	RangeMonth TrendRange = "month"
)

// TrendPoint 趋势序列中的一个点
type TrendPoint struct {
	Date      time.Time `json:"date"`
	MoodLevel float64   `json:"mood_level"`
}

// FactorImpact 因素影响统计
type FactorImpact struct {
	Name     string `json:"name"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Net      int    `json:"net"` // positive - negative
}

// WeeklyAverage 按周聚合的平均心情
type WeeklyAverage struct {
	Key     string  `json:"key"` // "周序号-月份缩写" 组合键
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// WeekStart 返回 t 所在自然周的周一 00:00（本地日历）
func WeekStart(t time.Time) time.Time {
	day := models.DayOf(t)
	// time.Weekday 周日为 0，此处按周一为一周起点
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// MoodTrend 返回指定范围内的 (日期, 心情值) 序列，按日期升序
// Week: now 所在自然周（周一..周日，含两端）
// Month: 与 now 的自然日距离不超过 30 天
func MoodTrend(entries []models.MoodEntry, rng TrendRange, now time.Time) []TrendPoint {
	var points []TrendPoint

	switch rng {
	case RangeWeek:
		start := WeekStart(now)
		end := start.AddDate(0, 0, 6) // 周日（含）
		for _, e := range entries {
			day := e.Day()
			if !day.Before(start) && !day.After(end) {
				points = append(points, TrendPoint{Date: e.Date, MoodLevel: e.MoodLevel})
			}
		}
	case RangeMonth:
		for _, e := range entries {
			diff := models.DaysBetween(e.Date, now)
			if diff < 0 {
				diff = -diff
			}
			if diff <= 30 {
				points = append(points, TrendPoint{Date: e.Date, MoodLevel: e.MoodLevel})
			}
		}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// FactorImpacts 统计所有条目中每个因素的正负出现次数
// 返回按 |净影响| 降序排列（并列时按名称升序，保证确定性）
func FactorImpacts(entries []models.MoodEntry) []FactorImpact {
	counts := make(map[string]*FactorImpact)
	for _, e := range entries {
		for name, sign := range e.Factors {
			fi, ok := counts[name]
			if !ok {
				fi = &FactorImpact{Name: name}
				counts[name] = fi
			}
			if sign == models.FactorPositive {
				fi.Positive++
			} else {
				fi.Negative++
			}
		}
	}

	impacts := make([]FactorImpact, 0, len(counts))
	for _, fi := range counts {
		fi.Net = fi.Positive - fi.Negative
		impacts = append(impacts, *fi)
	}

	sort.Slice(impacts, func(i, j int) bool {
		ai := abs(impacts[i].Net)
		aj := abs(impacts[j].Net)
		if ai != aj {
			return ai > aj
		}
		return impacts[i].Name < impacts[j].Name
	})
	return impacts
}

// WeeklyAverages 按（周序号, 月份缩写）组合键分组求平均，按键的字符串顺序升序
func WeeklyAverages(entries []models.MoodEntry) []WeeklyAverage {
	type group struct {
		sum   float64
		count int
	}
	groups := make(map[string]*group)
	for _, e := range entries {
		_, week := e.Date.ISOWeek()
		key := fmt.Sprintf("%02d-%s", week, e.Date.Format("Jan"))
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.sum += e.MoodLevel
		g.count++
	}

	averages := make([]WeeklyAverage, 0, len(groups))
	for key, g := range groups {
		if g.count == 0 {
			continue
		}
		averages = append(averages, WeeklyAverage{
			Key:     key,
			Average: g.sum / float64(g.count),
			Count:   g.count,
		})
	}

	sort.Slice(averages, func(i, j int) bool {
		return averages[i].Key < averages[j].Key
	})
	return averages
}

// Consistency 基于最近一周心情值的样本标准差计算稳定度
// 映射规则：max(0, min(1, 1 - stddev/3))
// 无数据点时返回 0；单个数据点视为无波动，返回 1
func Consistency(entries []models.MoodEntry, now time.Time) float64 {
	points := MoodTrend(entries, RangeWeek, now)
	if len(points) == 0 {
		return 0
	}
	if len(points) == 1 {
		return 1
	}

	var sum float64
	for _, p := range points {
		sum += p.MoodLevel
	}
	mean := sum / float64(len(points))

	var sq float64
	for _, p := range points {
		d := p.MoodLevel - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(points)-1))

	stability := 1 - stddev/3
	if stability < 0 {
		stability = 0
	}
	if stability > 1 {
		stability = 1
	}
	return stability
}

// Insights 生成自然语言洞察列表
// 包含：正向影响最大的因素（并列全列出）、负向影响最大的因素（并列全列出）、
// 以及当前周趋势满 7 天时的周平均
func Insights(entries []models.MoodEntry, now time.Time) []string {
	var insights []string

	impacts := FactorImpacts(entries)

	if names := topBy(impacts, func(fi FactorImpact) int { return fi.Positive }); len(names) > 0 {
		insights = append(insights, fmt.Sprintf("%s tends to lift your mood", strings.Join(names, ", ")))
	}
	if names := topBy(impacts, func(fi FactorImpact) int { return fi.Negative }); len(names) > 0 {
		insights = append(insights, fmt.Sprintf("%s tends to weigh on your mood", strings.Join(names, ", ")))
	}

	if points := MoodTrend(entries, RangeWeek, now); len(points) >= 7 {
		var sum float64
		for _, p := range points {
			sum += p.MoodLevel
		}
		insights = append(insights, fmt.Sprintf("Your average mood this week is %.1f", sum/float64(len(points))))
	}

	return insights
}

// topBy 返回计数值最大的因素名称（并列全部返回，按名称升序；最大计数为 0 时返回空）
func topBy(impacts []FactorImpact, count func(FactorImpact) int) []string {
	max := 0
	for _, fi := range impacts {
		if c := count(fi); c > max {
			max = c
		}
	}
	if max == 0 {
		return nil
	}
	var names []string
	for _, fi := range impacts {
		if count(fi) == max {
			names = append(names, fi.Name)
		}
	}
	sort.Strings(names)
	return names
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
