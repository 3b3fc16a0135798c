package layout

import (
	"regexp"
	"time"

	appLog "daygrid/internal/log"
)

// Default tuning values.
const (
	DefaultPxPerHour             = 60.0
	DefaultMergeThreshold        = 0.6
	DefaultBackgroundMinDuration = 4 * time.Hour
	DefaultMinIntervalMinutes    = 15
	DefaultEventDuration         = time.Hour
	DefaultMinHeightFactor       = 0.33
	DefaultMaxColumnStep         = 20.0
	DefaultCascadeSpan           = 70.0
)

// Stack orders. Higher paints on top.
const (
	StackBackground = 1
	StackForeground = 10
)

const minutesPerDay = 24 * 60

// DefaultBackgroundPatterns match titles of blocking/placeholder events.
var DefaultBackgroundPatterns = []string{
	`\bunavailable\b`,
	`\bdo not schedule\b`,
	`\bblock(er|ed)?\b`,
	`\bout of (the )?office\b`,
	`\booo\b`,
	`\bbusy\b`,
}

// Options controls the layout pipeline.
type Options struct {
	// PxPerHour is the vertical scale of the day grid.
	PxPerHour float64

	// MergeThreshold is the title similarity that must be exceeded
	// (strictly) for two same-slot events to merge.
	MergeThreshold float64

	// BackgroundMinDuration is the duration at or above which a timed event
	// is pushed to the background.
	BackgroundMinDuration time.Duration

	// MinIntervalMinutes is the minimum interval length used for grouping.
	MinIntervalMinutes int

	// DefaultDuration is assumed when an event has no usable end.
	DefaultDuration time.Duration

	// MinHeightFactor * PxPerHour is the minimum rendered height.
	MinHeightFactor float64

	// MaxColumnStep and CascadeSpan (percent) shape cascading clusters:
	// step = min(MaxColumnStep, CascadeSpan/(n-1)).
	MaxColumnStep float64
	CascadeSpan   float64

	// BackgroundPatterns are case-insensitive regular expressions matched
	// against event titles.
	BackgroundPatterns []string

	// Day, if non-zero, anchors minute offsets at that day's midnight (in
	// Day's location) and clips intervals to the day. Otherwise each event's
	// own time-of-day is used.
	Day time.Time
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	o := Options{}
	o.normalize()
	return o
}

func (o *Options) normalize() {
	if o.PxPerHour <= 0 {
		o.PxPerHour = DefaultPxPerHour
	}
	if o.MergeThreshold <= 0 {
		o.MergeThreshold = DefaultMergeThreshold
	}
	if o.BackgroundMinDuration <= 0 {
		o.BackgroundMinDuration = DefaultBackgroundMinDuration
	}
	if o.MinIntervalMinutes <= 0 {
		o.MinIntervalMinutes = DefaultMinIntervalMinutes
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = DefaultEventDuration
	}
	if o.MinHeightFactor <= 0 {
		o.MinHeightFactor = DefaultMinHeightFactor
	}
	if o.MaxColumnStep <= 0 {
		o.MaxColumnStep = DefaultMaxColumnStep
	}
	if o.CascadeSpan <= 0 {
		o.CascadeSpan = DefaultCascadeSpan
	}
	if o.BackgroundPatterns == nil {
		o.BackgroundPatterns = DefaultBackgroundPatterns
	}
}

// compilePatterns compiles title patterns case-insensitively. Invalid
// patterns are logged and skipped.
func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			appLog.Error("layout: invalid background pattern; skipping", err, "pattern", p)
			continue
		}
		out = append(out, re)
	}
	return out
}
