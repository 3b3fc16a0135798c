// Package agenda loads one day's events from the configured calendar sources.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daygrid/internal/config"
	"daygrid/internal/ics"
	appLog "daygrid/internal/log"
	"daygrid/internal/model"
)

// Loader fetches, parses and expands calendar sources.
type Loader struct {
	sources []ics.Source
	fetcher *ics.Fetcher
	loc     *time.Location
}

// NewLoader builds a Loader from cfg. Sources without a URL are skipped.
func NewLoader(cfg *config.Config) *Loader {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", cfg.Timezone)
	}

	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}

	return &Loader{
		sources: sources,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		loc:     loc,
	}
}

// Location is the display zone days are computed in.
func (l *Loader) Location() *time.Location {
	return l.loc
}

// Sources returns the configured sources.
func (l *Loader) Sources() []ics.Source {
	return l.sources
}

// Day returns the events touching day. Sources that fail to fetch or
// parse are logged and skipped; an error is returned only when every
// source failed.
func (l *Loader) Day(ctx context.Context, day time.Time) ([]model.CalendarEvent, error) {
	if len(l.sources) == 0 {
		return []model.CalendarEvent{}, nil
	}

	results, fetchErrs := l.fetcher.FetchAll(ctx, l.sources)
	if len(results) == 0 && len(fetchErrs) > 0 {
		return nil, fmt.Errorf("agenda: all sources failed: %w", errors.Join(fetchErrs...))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("agenda: parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	return l.expand(parsed, day)
}

// FromFiles is like Day but reads the given ICS files instead of the
// configured sources. Each file is its own source, identified by path.
func (l *Loader) FromFiles(ctx context.Context, paths []string, day time.Time) ([]model.CalendarEvent, error) {
	parsed := make([]ics.ParsedEvent, 0)
	for _, p := range paths {
		src := ics.Source{ID: p, URL: p}
		res, err := l.fetcher.FetchOne(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("agenda: read %s: %w", p, err)
		}
		events, err := ics.ParseICS(src, res.Body)
		if err != nil {
			return nil, fmt.Errorf("agenda: parse %s: %w", p, err)
		}
		parsed = append(parsed, events...)
	}
	return l.expand(parsed, day)
}

func (l *Loader) expand(parsed []ics.ParsedEvent, day time.Time) ([]model.CalendarEvent, error) {
	start, end := ics.DayWindow(day, l.loc)

	res, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: l.loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("agenda: expand: %w", err)
	}

	appLog.Info("agenda loaded",
		"day", start.Format("2006-01-02"),
		"sources", len(l.sources),
		"parsed", len(parsed),
		"events", len(res.Events),
	)
	return res.Events, nil
}
