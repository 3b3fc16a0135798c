package layout

import (
	"sort"
	"time"

	"daygrid/internal/model"
)

// item is a merged event with its interval inside the day, in minutes.
type item struct {
	event model.MergedEvent
	start float64
	end   float64
}

func (it item) duration() float64 {
	return it.end - it.start
}

// interval places an event on the day's minute axis as [start, end).
// Events without a start sit at minute 0 with the default duration;
// all-day events span the whole day.
func interval(ev model.CalendarEvent, o Options) (start, end float64) {
	minLen := float64(o.MinIntervalMinutes)

	switch {
	case !ev.HasStart():
		start = 0
		end = o.DefaultDuration.Minutes()
	case ev.AllDay():
		start = 0
		end = minutesPerDay
		if !o.Day.IsZero() {
			start = clampMinute(minuteOfDay(ev.Start, o.Day))
			if !ev.End.IsZero() {
				end = clampMinute(minuteOfDay(ev.End, o.Day))
			}
		}
	default:
		dur := o.DefaultDuration
		if !ev.End.IsZero() {
			dur = ev.End.Sub(ev.Start)
		}
		if o.Day.IsZero() {
			start = timeOfDay(ev.Start)
			end = start + dur.Minutes()
		} else {
			start = clampMinute(minuteOfDay(ev.Start, o.Day))
			end = clampMinute(minuteOfDay(ev.Start.Add(dur), o.Day))
		}
	}

	if end-start < minLen {
		end = start + minLen
	}
	if end > minutesPerDay {
		end = minutesPerDay
	}
	return start, end
}

func timeOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
}

// minuteOfDay returns the minutes between day's midnight and t.
func minuteOfDay(t, day time.Time) float64 {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return t.Sub(midnight).Minutes()
}

func clampMinute(m float64) float64 {
	if m < 0 {
		return 0
	}
	if m > minutesPerDay {
		return minutesPerDay
	}
	return m
}

// sortItems orders items by start, then longest first, then merged events
// first so they claim the leftmost column. Input order breaks remaining ties.
func sortItems(items []item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.duration() != b.duration() {
			return a.duration() > b.duration()
		}
		return a.event.IsMerged() && !b.event.IsMerged()
	})
}

// group partitions items into maximal clusters of transitively overlapping
// intervals. The input is sorted in place.
func group(items []item) [][]item {
	if len(items) == 0 {
		return nil
	}
	sortItems(items)

	clusters := make([][]item, 0)
	current := []item{items[0]}
	runningEnd := items[0].end

	for _, it := range items[1:] {
		if it.start >= runningEnd {
			clusters = append(clusters, current)
			current = []item{it}
			runningEnd = it.end
			continue
		}
		current = append(current, it)
		if it.end > runningEnd {
			runningEnd = it.end
		}
	}
	return append(clusters, current)
}
