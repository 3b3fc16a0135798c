package layout

import (
	"testing"
	"time"

	"daygrid/internal/model"
)

var testDay = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

func timed(id, source, summary string, startH, startM, durMin int) model.CalendarEvent {
	start := testDay.Add(time.Duration(startH)*time.Hour + time.Duration(startM)*time.Minute)
	return model.CalendarEvent{
		ID:       id,
		SourceID: source,
		Summary:  summary,
		Kind:     model.KindTimed,
		Start:    start,
		End:      start.Add(time.Duration(durMin) * time.Minute),
	}
}

func allDay(id, source, summary string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:       id,
		SourceID: source,
		Summary:  summary,
		Kind:     model.KindAllDay,
		Start:    testDay,
		End:      testDay.AddDate(0, 0, 1),
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"   ", "", 1},
		{"Standup", "", 0},
		{"", "Standup", 0},
		{"Daily Standup", "daily   STANDUP", 1},
		{"Standup", "Daily Standup", 0.5},
		{"a b c", "a b c d e", 0.6},
		{"x y", "x y z", 2.0 / 3.0},
		{"one", "two", 0},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMergeSameOrganizer(t *testing.T) {
	a := timed("1", "work", "Standup", 9, 0, 15)
	b := timed("2", "personal", "Daily Standup", 9, 0, 15)
	a.OrganizerID = "lead@example.com"
	b.OrganizerID = "lead@example.com"

	got := Merge([]model.CalendarEvent{a, b}, DefaultMergeThreshold)
	if len(got) != 1 {
		t.Fatalf("len(Merge) = %d, want 1", len(got))
	}
	if got[0].Event.ID != "1" {
		t.Errorf("representative = %q, want %q", got[0].Event.ID, "1")
	}
	if want := []string{"work", "personal"}; !equalStrings(got[0].Sources, want) {
		t.Errorf("Sources = %v, want %v", got[0].Sources, want)
	}
}

func TestMergeNeverSameSource(t *testing.T) {
	a := timed("1", "work", "Standup", 9, 0, 15)
	b := timed("2", "work", "Standup", 9, 0, 15)
	a.OrganizerID = "lead@example.com"
	b.OrganizerID = "lead@example.com"

	got := Merge([]model.CalendarEvent{a, b}, DefaultMergeThreshold)
	if len(got) != 2 {
		t.Fatalf("len(Merge) = %d, want 2", len(got))
	}
	for _, m := range got {
		if m.IsMerged() {
			t.Errorf("event %q merged with its own source", m.Event.ID)
		}
	}
}

func TestMergeThresholdIsStrict(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		wantMerged bool
	}{
		{"exactly at threshold", "a b c", "a b c d e", false},
		{"just above threshold", "x y", "x y z", true},
		{"both empty", "", "", true},
		{"one empty", "Review", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []model.CalendarEvent{
				timed("1", "s1", tt.a, 10, 0, 30),
				timed("2", "s2", tt.b, 10, 0, 30),
			}
			got := Merge(events, DefaultMergeThreshold)
			merged := len(got) == 1
			if merged != tt.wantMerged {
				t.Errorf("merged = %v, want %v (groups: %d)", merged, tt.wantMerged, len(got))
			}
		})
	}
}

func TestMergeRequiresExactSlot(t *testing.T) {
	events := []model.CalendarEvent{
		timed("1", "s1", "Planning", 10, 0, 30),
		timed("2", "s2", "Planning", 10, 0, 45),
		timed("3", "s3", "Planning", 10, 5, 30),
	}
	if got := Merge(events, DefaultMergeThreshold); len(got) != 3 {
		t.Errorf("len(Merge) = %d, want 3", len(got))
	}
}

func TestMergeOnlyThroughAnchor(t *testing.T) {
	events := []model.CalendarEvent{
		timed("a", "s1", "x y", 10, 0, 30),
		timed("b", "s2", "x y z", 10, 0, 30),
		timed("c", "s3", "y z", 10, 0, 30),
	}

	got := Merge(events, DefaultMergeThreshold)
	if len(got) != 2 {
		t.Fatalf("len(Merge) = %d, want 2", len(got))
	}
	if got[0].Event.ID != "a" || !equalStrings(got[0].Sources, []string{"s1", "s2"}) {
		t.Errorf("first group = %s %v, want a [s1 s2]", got[0].Event.ID, got[0].Sources)
	}
	if got[1].Event.ID != "c" || !equalStrings(got[1].Sources, []string{"s3"}) {
		t.Errorf("second group = %s %v, want c [s3]", got[1].Event.ID, got[1].Sources)
	}
}

func TestMergeKeylessEventsStayApart(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: "1", SourceID: "s1", Summary: "Call"},
		{ID: "2", SourceID: "s2", Summary: "Call"},
	}
	if got := Merge(events, DefaultMergeThreshold); len(got) != 2 {
		t.Errorf("len(Merge) = %d, want 2", len(got))
	}
}

func TestMergeAllDayUsesDates(t *testing.T) {
	a := allDay("1", "s1", "Holiday")
	b := allDay("2", "s2", "Holiday")
	// Same date, different wall clock: all-day keys compare dates only.
	b.Start = b.Start.Add(3 * time.Hour)
	b.End = b.End.Add(3 * time.Hour)

	got := Merge([]model.CalendarEvent{a, b}, DefaultMergeThreshold)
	if len(got) != 1 || !got[0].IsMerged() {
		t.Errorf("Merge = %+v, want one merged group", got)
	}
}

func TestMergeEmpty(t *testing.T) {
	got := Merge(nil, DefaultMergeThreshold)
	if got == nil || len(got) != 0 {
		t.Errorf("Merge(nil) = %#v, want empty slice", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
