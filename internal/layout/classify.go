package layout

import (
	"regexp"
	"time"

	"daygrid/internal/model"
)

// Class is the layout pass an event belongs to.
type Class int

const (
	Foreground Class = iota
	Background
)

func (c Class) String() string {
	if c == Background {
		return "background"
	}
	return "foreground"
}

// Classifier decides whether events are laid out full-width beneath the
// rest (background) or given their own column space (foreground).
type Classifier struct {
	patterns    []*regexp.Regexp
	minDuration time.Duration
}

// NewClassifier builds a Classifier from title patterns and the duration at
// or above which timed events are treated as blockers.
func NewClassifier(patterns []string, minDuration time.Duration) *Classifier {
	if minDuration <= 0 {
		minDuration = DefaultBackgroundMinDuration
	}
	return &Classifier{
		patterns:    compilePatterns(patterns),
		minDuration: minDuration,
	}
}

// Classify labels a merged event. Events corroborated by more than one
// source always stay in the foreground.
func (c *Classifier) Classify(m model.MergedEvent) Class {
	if m.IsMerged() {
		return Foreground
	}
	return c.ClassifyEvent(m.Event)
}

// ClassifyEvent labels a single unmerged event. First matching rule wins.
func (c *Classifier) ClassifyEvent(ev model.CalendarEvent) Class {
	for _, re := range c.patterns {
		if re.MatchString(ev.Summary) {
			return Background
		}
	}
	if d, ok := ev.Duration(); ok && d >= c.minDuration {
		return Background
	}
	return Foreground
}
