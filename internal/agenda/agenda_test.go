package agenda

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daygrid/internal/config"
	"daygrid/internal/layout"
)

const workICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//daygrid//test//EN
BEGIN:VEVENT
UID:w-1
DTSTAMP:20250301T000000Z
DTSTART:20250304T090000Z
DTEND:20250304T091500Z
SUMMARY:Standup
ORGANIZER:mailto:lead@example.com
END:VEVENT
BEGIN:VEVENT
UID:w-2
DTSTAMP:20250301T000000Z
DTSTART:20250305T090000Z
DTEND:20250305T100000Z
SUMMARY:Tomorrow
END:VEVENT
END:VCALENDAR
`

const homeICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//daygrid//test//EN
BEGIN:VEVENT
UID:h-1
DTSTAMP:20250301T000000Z
DTSTART:20250304T090000Z
DTEND:20250304T091500Z
SUMMARY:Daily Standup
ORGANIZER:mailto:Lead@Example.com
END:VEVENT
END:VCALENDAR
`

func writeICS(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(body, "\n", "\r\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.ICS = []config.ICSConfig{
		{ID: "work", URL: writeICS(t, dir, "work.ics", workICS)},
		{Name: "home", URL: writeICS(t, dir, "home.ics", homeICS)},
		{ID: "disabled"},
	}
	return cfg
}

func TestLoaderDay(t *testing.T) {
	l := NewLoader(testConfig(t))
	if len(l.Sources()) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(l.Sources()))
	}

	events, err := l.Day(context.Background(), time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Day() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}

	res := layout.Compute(events, layout.DefaultOptions())
	if len(res.Merged) != 1 {
		t.Fatalf("len(Merged) = %d, want 1", len(res.Merged))
	}
	if got := res.Merged[0].Sources; len(got) != 2 || got[0] != "home" || got[1] != "work" {
		t.Errorf("Sources = %v", got)
	}
	if !res.Positioned[0].IsMerged || res.Positioned[0].IsBackground {
		t.Errorf("positioned = %+v", res.Positioned[0])
	}
}

func TestLoaderNoSources(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()

	events, err := NewLoader(cfg).Day(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Day() error: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("events = %#v, want empty slice", events)
	}
}

func TestLoaderAllSourcesFail(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.ICS = []config.ICSConfig{{ID: "gone", URL: filepath.Join(t.TempDir(), "missing.ics")}}

	if _, err := NewLoader(cfg).Day(context.Background(), time.Now()); err == nil {
		t.Error("expected error when every source fails")
	}
}

func TestLoaderFromFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(dir, "cache")
	path := writeICS(t, dir, "work.ics", workICS)

	events, err := NewLoader(cfg).FromFiles(context.Background(), []string{path}, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FromFiles() error: %v", err)
	}
	if len(events) != 1 || events[0].Summary != "Tomorrow" || events[0].SourceID != path {
		t.Errorf("events = %+v", events)
	}
}
