package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultStreakWindowDays bounds how far back the completion streak is walked.
const DefaultStreakWindowDays = 30

// productiveHourSlots is how many hour buckets productiveHours reports.
const productiveHourSlots = 4

// PerformanceMetrics aggregates productivity statistics over the item collection.
type PerformanceMetrics struct {
	CompletionRate   float64   `json:"completion_rate"`
	PostponementRate float64   `json:"postponement_rate"`
	AverageDelay     float64   `json:"average_delay"`
	StreakDays       int       `json:"streak_days"`
	FocusTime        int       `json:"focus_time"`
	ProductiveHours  []string  `json:"productive_hours"`
	ComputedAt       time.Time `json:"computed_at"`
}

// MetricsOptions tunes ComputeMetrics.
type MetricsOptions struct {
	StreakWindowDays int
}

// ComputeMetrics derives PerformanceMetrics from items. Calendar days and hour buckets use now's location.
func ComputeMetrics(items []ScheduleItem, now time.Time, opts MetricsOptions) PerformanceMetrics {
	if opts.StreakWindowDays <= 0 {
		opts.StreakWindowDays = DefaultStreakWindowDays
	}
	loc := now.Location()
	out := PerformanceMetrics{
		ProductiveHours: []string{},
		ComputedAt:      now.UTC(),
	}
	total := len(items)
	if total == 0 {
		return out
	}

	var (
		completed     int
		postponed     int
		delayRecords  int
		delayMinutes  float64
		highDays      = map[string]struct{}{}
		hourCounts    = map[string]int{}
		hourFirstSeen []string
	)
	for _, it := range items {
		if len(it.Postponements) > 0 {
			postponed++
		}
		for _, rec := range it.Postponements {
			delayRecords++
			delayMinutes += rec.Delay().Minutes()
		}
		if !it.Completed {
			continue
		}
		completed++
		out.FocusTime += it.ActualDuration
		if it.CompletedAt == nil {
			continue
		}
		local := it.CompletedAt.In(loc)
		if it.Priority == PriorityHigh {
			highDays[dayKey(local)] = struct{}{}
		}
		bucket := fmt.Sprintf("%02d:00", local.Hour())
		if _, ok := hourCounts[bucket]; !ok {
			hourFirstSeen = append(hourFirstSeen, bucket)
		}
		hourCounts[bucket]++
	}

	out.CompletionRate = float64(completed) / float64(total) * 100
	out.PostponementRate = float64(postponed) / float64(total) * 100
	if delayRecords > 0 {
		out.AverageDelay = delayMinutes / float64(delayRecords)
	}

	today := now.In(loc)
	for i := 0; i < opts.StreakWindowDays; i++ {
		day := today.AddDate(0, 0, -i)
		if _, ok := highDays[dayKey(day)]; !ok {
			break
		}
		out.StreakDays++
	}

	// Stable sort keeps first-seen order among equal counts.
	hours := slices.Clone(hourFirstSeen)
	slices.SortStableFunc(hours, func(a, b string) int {
		return hourCounts[b] - hourCounts[a]
	})
	if len(hours) > productiveHourSlots {
		hours = hours[:productiveHourSlots]
	}
	out.ProductiveHours = append(out.ProductiveHours, hours...)
	return out
}

// dayKey names the calendar day of t in its own location.
func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
