package ics

import (
	"strings"
	"testing"
	"time"

	"daygrid/internal/model"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//daygrid//test//EN
BEGIN:VEVENT
UID:standup-1
DTSTAMP:20250301T000000Z
DTSTART:20250304T090000Z
DTEND:20250304T091500Z
SUMMARY:Standup
ORGANIZER;CN=Lead:mailto:Lead@Example.com
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250301T000000Z
DTSTART;VALUE=DATE:20250304
DTEND;VALUE=DATE:20250305
SUMMARY:Out of Office
END:VEVENT
BEGIN:VEVENT
UID:sync-1
DTSTAMP:20250301T000000Z
DTSTART:20250303T100000Z
DTEND:20250303T103000Z
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20250305T100000Z
SUMMARY:Sync
END:VEVENT
BEGIN:VEVENT
UID:sync-1
DTSTAMP:20250301T000000Z
RECURRENCE-ID:20250304T100000Z
DTSTART:20250304T110000Z
DTEND:20250304T113000Z
SUMMARY:Sync (moved)
END:VEVENT
BEGIN:VEVENT
UID:open-ended
DTSTAMP:20250301T000000Z
DTSTART:20250304T150000Z
SUMMARY:Call
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func parseSample(t *testing.T, id string) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(Source{ID: id, URL: "https://example.com/" + id + ".ics"}, crlf(sampleICS))
	if err != nil {
		t.Fatalf("ParseICS() error: %v", err)
	}
	return events
}

func TestParseICS(t *testing.T) {
	events := parseSample(t, "work")
	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}

	standup := events[0]
	if standup.Organizer != "lead@example.com" {
		t.Errorf("Organizer = %q, want %q", standup.Organizer, "lead@example.com")
	}
	if standup.AllDay {
		t.Error("standup should not be all-day")
	}
	if want := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC); !standup.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", standup.Start, want)
	}

	ooo := events[1]
	if !ooo.AllDay {
		t.Error("OOO should be all-day")
	}
	if ooo.UID == "" {
		t.Error("missing UID should be generated")
	}

	if events[2].RawRRule == "" || len(events[2].ExDates) != 1 {
		t.Errorf("recurrence not captured: rrule=%q exdates=%v", events[2].RawRRule, events[2].ExDates)
	}
	if !events[3].IsOverride || events[3].Recurrence == nil {
		t.Error("RECURRENCE-ID not captured")
	}
	if !events[4].End.IsZero() {
		t.Errorf("End = %v, want zero for missing DTEND", events[4].End)
	}
}

func TestParseICSErrors(t *testing.T) {
	if _, err := ParseICS(Source{ID: "x"}, nil); err == nil {
		t.Error("ParseICS(nil) should fail")
	}
}

func TestNormalizeOrganizer(t *testing.T) {
	tests := map[string]string{
		"mailto:Lead@Example.com": "lead@example.com",
		"MAILTO:a@b.c":            "a@b.c",
		" x@y.z ":                 "x@y.z",
		"":                        "",
	}
	for in, want := range tests {
		if got := normalizeOrganizer(in); got != want {
			t.Errorf("normalizeOrganizer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandForDay(t *testing.T) {
	events := parseSample(t, "work")
	day := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	start, end := DayWindow(day, time.UTC)

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		t.Fatalf("ExpandOccurrences() error: %v", err)
	}

	got := make(map[string]model.CalendarEvent)
	for _, ev := range res.Events {
		got[ev.Summary] = ev
	}
	if len(res.Events) != 4 {
		t.Fatalf("len(Events) = %d (%v), want 4", len(res.Events), res.Events)
	}

	if _, ok := got["Sync"]; ok {
		t.Error("overridden instance should be replaced")
	}
	moved, ok := got["Sync (moved)"]
	if !ok {
		t.Fatal("override missing")
	}
	if moved.Start.Hour() != 11 || moved.ID != "sync-1/2025-03-04T11:00:00Z" {
		t.Errorf("moved = %s at %v", moved.ID, moved.Start)
	}

	ooo := got["Out of Office"]
	if ooo.Kind != model.KindAllDay {
		t.Errorf("Kind = %v, want all_day", ooo.Kind)
	}
	if !ooo.Start.Equal(start) || !ooo.End.Equal(end) {
		t.Errorf("OOO = [%v, %v), want [%v, %v)", ooo.Start, ooo.End, start, end)
	}

	if got["Standup"].OrganizerID != "lead@example.com" || got["Standup"].SourceID != "work" {
		t.Errorf("standup = %+v", got["Standup"])
	}
	if !got["Call"].End.IsZero() {
		t.Error("Call should keep a missing end")
	}
}

func TestExpandExDate(t *testing.T) {
	events := parseSample(t, "work")
	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	start, end := DayWindow(day, time.UTC)

	res, err := ExpandOccurrences(events, ExpandConfig{DisplayLocation: time.UTC, RangeStart: start, RangeEnd: end})
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range res.Events {
		if ev.Summary == "Sync" {
			t.Errorf("excluded instance expanded: %+v", ev)
		}
	}
}

func TestExpandInvalidRange(t *testing.T) {
	now := time.Now()
	if _, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestForDay(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, loc)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	events := []model.CalendarEvent{
		{ID: "in", Start: at(9), End: at(10)},
		{ID: "before", Start: at(-3), End: at(-1)},
		{ID: "spans", Start: at(-2), End: at(1)},
		{ID: "next", Start: at(24), End: at(25)},
		{ID: "instant", Start: at(12)},
		{ID: "nostart"},
	}

	got := ForDay(events, day, loc)
	want := []string{"in", "spans", "instant"}
	if len(got) != len(want) {
		t.Fatalf("ForDay = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("ForDay[%d] = %q, want %q", i, got[i].ID, want[i])
		}
	}
}
