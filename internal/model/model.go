package model

import (
	"fmt"
	"strconv"
	"time"
)

// Kind distinguishes how an event's start/end are interpreted.
type Kind int

const (
	// KindTimed events carry instants in Start/End.
	KindTimed Kind = iota
	// KindAllDay events carry local-midnight dates in Start/End forming a
	// half-open date range.
	KindAllDay
)

func (k Kind) String() string {
	switch k {
	case KindTimed:
		return "timed"
	case KindAllDay:
		return "all_day"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindTimed, KindAllDay:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("model: unknown event kind %d", int(k))
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "timed", "":
		*k = KindTimed
	case "all_day":
		*k = KindAllDay
	default:
		return fmt.Errorf("model: unknown event kind %q", b)
	}
	return nil
}

const dateLayout = "2006-01-02"

// CalendarEvent is a single concrete event instance as delivered by a
// calendar source (after recurrence expansion and timezone normalization).
type CalendarEvent struct {
	ID       string `json:"id"`        // unique within one source
	SourceID string `json:"source_id"` // originating account/calendar

	Summary string `json:"summary"`

	// OrganizerID is the organizer's address, lower-cased, without "mailto:".
	OrganizerID string `json:"organizer_id,omitempty"`

	Kind Kind `json:"kind"`

	// Start / End are in the display timezone. A zero End means the
	// source did not provide one.
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// AllDay reports whether the event is date-only.
func (e CalendarEvent) AllDay() bool {
	return e.Kind == KindAllDay
}

// HasStart reports whether the event has a usable start.
func (e CalendarEvent) HasStart() bool {
	return !e.Start.IsZero()
}

// TimeKey returns the literal start/end values used to decide whether two
// events occupy exactly the same slot. ok is false when the event has no start.
func (e CalendarEvent) TimeKey() (start, end string, ok bool) {
	if e.Start.IsZero() {
		return "", "", false
	}

	switch e.Kind {
	case KindAllDay:
		start = e.Start.Format(dateLayout)
		if !e.End.IsZero() {
			end = e.End.Format(dateLayout)
		}
	case KindTimed:
		start = e.Start.Format(time.RFC3339Nano)
		if !e.End.IsZero() {
			end = e.End.Format(time.RFC3339Nano)
		}
	default:
		return "", "", false
	}
	return start, end, true
}

// Duration returns End-Start for timed events that have both ends.
func (e CalendarEvent) Duration() (time.Duration, bool) {
	if e.Kind != KindTimed || e.Start.IsZero() || e.End.IsZero() {
		return 0, false
	}
	return e.End.Sub(e.Start), true
}

// MergedEvent is one representative event plus every source judged to hold
// a duplicate of it.
type MergedEvent struct {
	Event CalendarEvent `json:"event"`

	// Sources lists contributing source IDs, representative's source first.
	Sources []string `json:"sources"`
}

// IsMerged reports whether more than one source contributed.
func (m MergedEvent) IsMerged() bool {
	return len(m.Sources) > 1
}

// PositionedEvent is the geometry computed for one MergedEvent.
type PositionedEvent struct {
	Event MergedEvent `json:"event"`

	// Top / Height are pixels from the start of the day column.
	Top    float64 `json:"top"`
	Height float64 `json:"height"`

	// Left / Width are percentages of the day column width. InsetPx is
	// trimmed from both sides when rendering.
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
	InsetPx float64 `json:"inset_px,omitempty"`

	StackOrder int `json:"stack_order"`

	// Column is the column index within the overlap cluster; Cluster is the
	// cluster index, -1 for background events.
	Column  int `json:"column"`
	Cluster int `json:"cluster"`

	IsBackground bool `json:"is_background"`
	IsMerged     bool `json:"is_merged"`
}

// CSSLeft renders Left (and inset) as a CSS length.
func (p PositionedEvent) CSSLeft() string {
	if p.InsetPx == 0 {
		return formatPercent(p.Left)
	}
	return "calc(" + formatPercent(p.Left) + " + " + formatPx(p.InsetPx) + ")"
}

// CSSWidth renders Width (minus inset on both sides) as a CSS length.
func (p PositionedEvent) CSSWidth() string {
	if p.InsetPx == 0 {
		return formatPercent(p.Width)
	}
	return "calc(" + formatPercent(p.Width) + " - " + formatPx(2*p.InsetPx) + ")"
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
