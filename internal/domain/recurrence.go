package domain

import (
	"slices"
	"strings"
	"time"
)

// NextOccurrence advances date by one recurrence step on the calendar of date's location,
// so the wall-clock time holds across DST changes. None returns date unchanged.
func NextOccurrence(date time.Time, pattern Recurrence) time.Time {
	switch pattern {
	case RecurrenceDaily:
		return date.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return date.AddDate(0, 0, 7)
	case RecurrenceBiweekly:
		return date.AddDate(0, 0, 14)
	case RecurrenceMonthly:
		return date.AddDate(0, 1, 0)
	default:
		return date
	}
}

// Occurrences returns the first n start times of a recurring series beginning at start.
// Steps follow the calendar of start's location.
func Occurrences(start time.Time, pattern Recurrence, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	next := start
	for i := 0; i < n; i++ {
		out = append(out, next)
		if !pattern.Repeats() {
			break
		}
		next = NextOccurrence(next, pattern)
	}
	return out
}

// OccurrenceCount is how many future occurrences get notifications planned up front.
func OccurrenceCount(pattern Recurrence) int {
	switch pattern {
	case RecurrenceDaily:
		return 7
	case RecurrenceWeekly:
		return 4
	case RecurrenceBiweekly:
		return 2
	case RecurrenceMonthly:
		return 1
	default:
		return 1
	}
}

// IntervalsOverlap reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ReminderAt returns startDate - reminder minutes, and false when no reminder is set.
func (it ScheduleItem) ReminderAt() (time.Time, bool) {
	if it.Reminder <= 0 {
		return time.Time{}, false
	}
	return it.StartDate.Add(-time.Duration(it.Reminder) * time.Minute), true
}

// Conflict is an advisory overlap between two items.
type Conflict struct {
	ItemID        string    `json:"item_id"`
	ConflictingID string    `json:"conflicting_id"`
	Title         string    `json:"title"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// FindConflicts returns the non-completed candidates whose interval intersects item's.
func FindConflicts(item ScheduleItem, candidates []ScheduleItem) []Conflict {
	out := make([]Conflict, 0)
	for _, other := range candidates {
		if other.ID == item.ID || other.Completed || other.DeletedAt != nil {
			continue
		}
		if !IntervalsOverlap(item.StartDate, item.EndDate, other.StartDate, other.EndDate) {
			continue
		}
		out = append(out, Conflict{
			ItemID:        item.ID,
			ConflictingID: other.ID,
			Title:         other.Title,
			StartDate:     other.StartDate,
			EndDate:       other.EndDate,
		})
	}
	slices.SortFunc(out, func(a, b Conflict) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.ConflictingID, b.ConflictingID)
	})
	return out
}
