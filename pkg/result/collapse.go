package result

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// collapseLog collects the collapse events of every aggregated trajectory.
// Events are cheap, so both aggregator realizations retain all of them;
// the per-channel rate histogram is rebuilt from this log on demand.
type collapseLog struct {
	numChannels int
	perTraj     [][]CollapseEvent
}

func (c *collapseLog) append(events []CollapseEvent) {
	// Own the slice: the recorder may be dropped after aggregation.
	cp := make([]CollapseEvent, len(events))
	copy(cp, events)
	c.perTraj = append(c.perTraj, cp)
}

func (c *collapseLog) collapse() [][]CollapseEvent { return c.perTraj }

func (c *collapseLog) colTimes() [][]float64 {
	out := make([][]float64, len(c.perTraj))
	for i, events := range c.perTraj {
		ts := make([]float64, len(events))
		for j, ev := range events {
			ts[j] = ev.Time
		}
		out[i] = ts
	}
	return out
}

func (c *collapseLog) colWhich() [][]int {
	out := make([][]int, len(c.perTraj))
	for i, events := range c.perTraj {
		ws := make([]int, len(events))
		for j, ev := range events {
			ws[j] = ev.Which
		}
		out[i] = ws
	}
	return out
}

// photocurrent builds the per-channel event-rate estimate: a histogram of
// each channel's collapse times over the time grid, normalized by bin
// width and trajectory count. Bins are left-closed with the final bin
// closed on both sides; events outside the grid are ignored. A channel
// with no events yields all-zero bins.
func (c *collapseLog) photocurrent(times []float64, ntraj int) ([][]float64, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("photocurrent needs at least 2 time points, got %d", len(times))
	}
	bins := len(times) - 1
	widths := make([]float64, bins)
	for i := range widths {
		widths[i] = times[i+1] - times[i]
	}

	rates := make([][]float64, c.numChannels)
	for ch := range rates {
		counts := make([]float64, bins)
		for _, events := range c.perTraj {
			for _, ev := range events {
				if ev.Which != ch {
					continue
				}
				if bin, ok := locateBin(times, ev.Time); ok {
					counts[bin]++
				}
			}
		}
		floats.Div(counts, widths)
		floats.Scale(1/float64(ntraj), counts)
		rates[ch] = counts
	}
	return rates, nil
}

// locateBin finds the histogram bin for t over sorted edges.
func locateBin(edges []float64, t float64) (int, bool) {
	last := len(edges) - 1
	if t < edges[0] || t > edges[last] {
		return 0, false
	}
	if t == edges[last] {
		return last - 1, true
	}
	i := sort.SearchFloat64s(edges, t)
	if i < len(edges) && edges[i] == t {
		return i, true
	}
	return i - 1, true
}
