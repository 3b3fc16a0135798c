// Package layout turns one day's calendar events into a deduplicated,
// positioned set of blocks for a time grid.
//
// The pipeline is merge → classify → group → columns. Every stage is a pure
// function of its input; Compute holds no state between calls and is safe
// to call concurrently for different days.
package layout

import (
	appLog "daygrid/internal/log"
	"daygrid/internal/model"
)

// Result is the output of Compute.
type Result struct {
	// Merged holds one entry per distinct event after cross-source merging.
	Merged []model.MergedEvent `json:"merged"`

	// Positioned holds one entry per Merged event: the background pass
	// first, then foreground clusters in time order.
	Positioned []model.PositionedEvent `json:"positioned"`

	// Clusters is the number of foreground overlap clusters.
	Clusters int `json:"clusters"`
}

// Compute merges, classifies, groups and positions events.
func Compute(events []model.CalendarEvent, opts Options) Result {
	opts.normalize()

	merged := Merge(events, opts.MergeThreshold)
	res := Result{
		Merged:     merged,
		Positioned: make([]model.PositionedEvent, 0, len(merged)),
	}
	if len(merged) == 0 {
		return res
	}

	classifier := NewClassifier(opts.BackgroundPatterns, opts.BackgroundMinDuration)

	var background, foreground []item
	for _, m := range merged {
		start, end := interval(m.Event, opts)
		it := item{event: m, start: start, end: end}
		if classifier.Classify(m) == Background {
			background = append(background, it)
		} else {
			foreground = append(foreground, it)
		}
	}

	sortItems(background)
	res.Positioned = append(res.Positioned, layoutBackground(background, opts)...)

	clusters := group(foreground)
	for i, c := range clusters {
		res.Positioned = append(res.Positioned, layoutCluster(c, i, opts)...)
	}
	res.Clusters = len(clusters)

	appLog.Debug("layout computed",
		"input", len(events),
		"merged", len(merged),
		"background", len(background),
		"foreground", len(foreground),
		"clusters", len(clusters),
	)
	return res
}
