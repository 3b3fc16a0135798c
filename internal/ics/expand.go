package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "daygrid/internal/log"
	"daygrid/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the zone every occurrence is converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the half-open window of interest.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion of a single RRULE. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.CalendarEvent
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into concrete events that touch
// the configured window. It handles single events, RRULE recurrence, EXDATE
// and RECURRENCE-ID overrides. Output is ordered by start, then source.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// UIDs are only unique per source.
	type key struct{ source, uid string }
	baseByUID := make(map[key][]ParsedEvent)
	overridesByUID := make(map[key][]ParsedEvent)
	order := make([]key, 0)

	for _, ev := range events {
		k := key{source: ev.Source.ID, uid: ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[k] = append(overridesByUID[k], ev)
			continue
		}
		if _, seen := baseByUID[k]; !seen {
			order = append(order, k)
		}
		baseByUID[k] = append(baseByUID[k], ev)
	}

	out := make([]model.CalendarEvent, 0)
	for _, k := range order {
		truncated := false
		for _, ev := range baseByUID[k] {
			occ, hitCap := expandEvent(ev, overridesByUID[k], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Warn("expand: truncated occurrences due to cap",
				"uid", k.uid,
				"source", k.source,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].SourceID < out[j].SourceID
	})

	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	occ := makeEvent(ev, ev.Start, ev.End, false, cfg.DisplayLocation)
	if !Overlaps(occ, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.CalendarEvent{occ}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(alignExDate(ex, ev))
	}

	var dur time.Duration
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}
	if ev.AllDay && dur <= 0 {
		dur = 24 * time.Hour
	}

	// Start the search one duration early so instances that began before
	// the window but still run into it are kept.
	loc := ev.Start.Location()
	rangeStart := cfg.RangeStart.Add(-dur).In(loc)
	rangeEnd := cfg.RangeEnd.In(loc)

	starts := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, s := range starts {
		var end time.Time
		if dur > 0 {
			end = s.Add(dur)
		}
		base := ev
		if o, ok := findOverrideForStart(overrides, s); ok {
			base = o
			s, end = o.Start, o.End
		}
		occ := makeEvent(base, s, end, true, cfg.DisplayLocation)
		if Overlaps(occ, cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, occ)
		}
	}
	return out, hitCap
}

// alignExDate reads a floating EXDATE in the event's own zone.
func alignExDate(ex time.Time, ev ParsedEvent) time.Time {
	if ex.Location() == time.UTC {
		return ex.In(ev.Start.Location())
	}
	loc := ev.Start.Location()
	return time.Date(ex.Year(), ex.Month(), ex.Day(), ex.Hour(), ex.Minute(), ex.Second(), 0, loc)
}

// findOverrideForStart finds the override whose RECURRENCE-ID names the
// instance starting at start. Floating RECURRENCE-IDs compare by wall clock.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		rid := *ov.Recurrence
		if rid.Location() != time.UTC {
			rid = time.Date(rid.Year(), rid.Month(), rid.Day(), rid.Hour(), rid.Minute(), rid.Second(), 0, start.Location())
		}
		if rid.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a (possibly overridden) ParsedEvent instance into a
// model.CalendarEvent in displayLoc.
func makeEvent(ev ParsedEvent, start, end time.Time, recurring bool, displayLoc *time.Location) model.CalendarEvent {
	out := model.CalendarEvent{
		ID:          ev.UID,
		SourceID:    ev.Source.ID,
		Summary:     ev.Summary,
		OrganizerID: ev.Organizer,
		Kind:        model.KindTimed,
	}

	if ev.AllDay {
		// Dates are floating: keep the calendar date, re-anchor at midnight.
		out.Kind = model.KindAllDay
		out.Start = midnight(start, displayLoc)
		if end.IsZero() || !end.After(start) {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = midnight(end, displayLoc)
		}
	} else {
		out.Start = start.In(displayLoc)
		if !end.IsZero() {
			out.End = end.In(displayLoc)
		}
	}

	if recurring {
		out.ID = ev.UID + "/" + out.Start.Format(time.RFC3339)
	}
	return out
}

func midnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns [midnight, next midnight) of day in loc.
func DayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = day.Location()
	}
	start := midnight(day.In(loc), loc)
	return start, start.AddDate(0, 0, 1)
}

// Overlaps reports whether ev touches [start, end). Events without an end
// are treated as instants.
func Overlaps(ev model.CalendarEvent, start, end time.Time) bool {
	if ev.Start.IsZero() {
		return false
	}
	if !ev.Start.Before(end) {
		return false
	}
	if ev.End.IsZero() {
		return !ev.Start.Before(start)
	}
	return ev.End.After(start)
}

// ForDay keeps the events touching day (in loc).
func ForDay(events []model.CalendarEvent, day time.Time, loc *time.Location) []model.CalendarEvent {
	start, end := DayWindow(day, loc)
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if Overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	return out
}
