package layout

import (
	"strings"

	"daygrid/internal/model"
)

// Merge collapses same-slot duplicates reported by different sources.
//
// Events are bucketed by their exact (start, end) key; events with
// different boundaries are never merged. Inside a bucket the first
// unconsumed event becomes an anchor and absorbs every later unconsumed
// event from another source whose organizer matches or whose title
// similarity exceeds threshold. Absorbed events never become anchors.
// Events without a start form their own bucket.
func Merge(events []model.CalendarEvent, threshold float64) []model.MergedEvent {
	out := make([]model.MergedEvent, 0, len(events))
	if len(events) == 0 {
		return out
	}

	type slot struct{ start, end string }

	index := make(map[slot]int)
	buckets := make([][]model.CalendarEvent, 0)

	for _, ev := range events {
		start, end, ok := ev.TimeKey()
		if !ok {
			buckets = append(buckets, []model.CalendarEvent{ev})
			continue
		}
		k := slot{start: start, end: end}
		i, seen := index[k]
		if !seen {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], ev)
	}

	for _, bucket := range buckets {
		out = append(out, mergeBucket(bucket, threshold)...)
	}
	return out
}

func mergeBucket(bucket []model.CalendarEvent, threshold float64) []model.MergedEvent {
	if len(bucket) == 1 {
		return []model.MergedEvent{{Event: bucket[0], Sources: []string{bucket[0].SourceID}}}
	}

	consumed := make([]bool, len(bucket))
	out := make([]model.MergedEvent, 0, len(bucket))

	for i, anchor := range bucket {
		if consumed[i] {
			continue
		}
		consumed[i] = true
		m := model.MergedEvent{Event: anchor, Sources: []string{anchor.SourceID}}

		for j := i + 1; j < len(bucket); j++ {
			if consumed[j] || bucket[j].SourceID == anchor.SourceID {
				continue
			}
			if isDuplicate(anchor, bucket[j], threshold) {
				consumed[j] = true
				m.Sources = append(m.Sources, bucket[j].SourceID)
			}
		}
		out = append(out, m)
	}
	return out
}

func isDuplicate(a, b model.CalendarEvent, threshold float64) bool {
	if a.OrganizerID != "" && a.OrganizerID == b.OrganizerID {
		return true
	}
	return Similarity(a.Summary, b.Summary) > threshold
}

// Similarity is the Jaccard index of the lower-cased whitespace-separated
// word sets of a and b. Two empty titles are identical; one empty title
// matches nothing.
func Similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)

	switch {
	case len(wa) == 0 && len(wb) == 0:
		return 1
	case len(wa) == 0 || len(wb) == 0:
		return 0
	}

	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
