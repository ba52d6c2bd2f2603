package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSlotMinutes is the booking granularity.
const DefaultSlotMinutes = 30

// Part-of-day boundaries, in minutes since midnight. Morning and afternoon
// are half-open; evening includes its upper bound.
const (
	morningStart   = 6 * 60
	afternoonStart = 12 * 60
	eveningStart   = 17 * 60
	eveningEnd     = 21 * 60
)

// NormalizePartOfDay validates an optional part-of-day filter. Empty input
// means no filter.
func NormalizePartOfDay(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "morning", "afternoon", "evening":
		return s, nil
	default:
		return "", fmt.Errorf("schedule: unknown part of day %q", s)
	}
}

func inPartOfDay(part string, start time.Time) bool {
	m := start.Hour()*60 + start.Minute()
	switch part {
	case "morning":
		return m >= morningStart && m < afternoonStart
	case "afternoon":
		return m >= afternoonStart && m < eveningStart
	case "evening":
		return m >= eveningStart && m <= eveningEnd
	default:
		return true
	}
}

func overlapsAny(start, end time.Time, busy []Slot) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}

// ComputeSlots cuts a day's availability windows into fixed-length slots,
// drops slots overlapping busy blocks, and applies the optional part-of-day
// filter. Windows whose weekday does not match the day are ignored, so the
// caller may pass a doctor's full weekly schedule.
func ComputeSlots(windows []Window, busy []Slot, day time.Time, partOfDay string, slotMinutes int) []Slot {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	step := time.Duration(slotMinutes) * time.Minute
	weekday := storageWeekday(day.Weekday())

	var out []Slot
	for _, w := range windows {
		if w.DayOfWeek != weekday {
			continue
		}
		curr := w.Start.On(day)
		end := w.End.On(day)
		for !curr.Add(step).After(end) {
			next := curr.Add(step)
			if inPartOfDay(partOfDay, curr) && !overlapsAny(curr, next, busy) {
				out = append(out, Slot{Start: curr, End: next})
			}
			curr = next
		}
	}
	return out
}
