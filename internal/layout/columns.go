package layout

import (
	"math"

	"daygrid/internal/model"
)

const singleInsetPx = 1

// position computes top/height in pixels for an item.
func position(it item, o Options) (top, height float64) {
	top = it.start / 60 * o.PxPerHour
	height = math.Max(it.duration()/60*o.PxPerHour, o.PxPerHour*o.MinHeightFactor)
	return top, height
}

func positioned(it item, o Options) model.PositionedEvent {
	top, height := position(it, o)
	return model.PositionedEvent{
		Event:    it.event,
		Top:      top,
		Height:   height,
		IsMerged: it.event.IsMerged(),
	}
}

// layoutBackground places background events full width beneath everything.
func layoutBackground(items []item, o Options) []model.PositionedEvent {
	out := make([]model.PositionedEvent, 0, len(items))
	for _, it := range items {
		p := positioned(it, o)
		p.Left = 0
		p.Width = 100
		p.StackOrder = StackBackground
		p.Cluster = -1
		p.IsBackground = true
		out = append(out, p)
	}
	return out
}

// layoutCluster assigns horizontal placement within one overlap cluster.
// The cluster must already be in sweep order.
func layoutCluster(cluster []item, clusterIdx int, o Options) []model.PositionedEvent {
	out := make([]model.PositionedEvent, 0, len(cluster))

	switch n := len(cluster); n {
	case 0:
		return out
	case 1:
		p := positioned(cluster[0], o)
		p.Width = 100
		p.InsetPx = singleInsetPx
		p.StackOrder = StackForeground
		p.Cluster = clusterIdx
		return append(out, p)
	case 2:
		for i, it := range cluster {
			p := positioned(it, o)
			p.Left = float64(i) * 50
			p.Width = 50
			p.Column = i
			p.StackOrder = StackForeground + i
			p.Cluster = clusterIdx
			out = append(out, p)
		}
		return out
	default:
		step := math.Min(o.MaxColumnStep, o.CascadeSpan/float64(n-1))
		for i, col := range assignColumns(cluster) {
			p := positioned(cluster[i], o)
			p.Left = float64(col) * step
			p.Width = 100 - p.Left
			p.Column = col
			p.StackOrder = StackForeground + col
			p.Cluster = clusterIdx
			out = append(out, p)
		}
		return out
	}
}

// assignColumns is first-fit interval coloring: each item goes into the
// first column whose last end is at or before the item's start.
func assignColumns(cluster []item) []int {
	cols := make([]int, len(cluster))
	ends := make([]float64, 0)

	for i, it := range cluster {
		placed := false
		for c, end := range ends {
			if end <= it.start {
				cols[i] = c
				ends[c] = it.end
				placed = true
				break
			}
		}
		if !placed {
			cols[i] = len(ends)
			ends = append(ends, it.end)
		}
	}
	return cols
}
