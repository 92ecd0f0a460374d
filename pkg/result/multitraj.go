package result

import (
	"fmt"
	"sort"
	"strings"

	"github.com/perjlieb/qutip/pkg/quantum"
)

// MultiTraj aggregates completed trajectories into ensemble statistics.
// Two realizations exist: Retained keeps every trajectory and recomputes
// statistics from the full set; Streaming folds each trajectory into
// running sums and discards it.
//
// Add calls on one aggregator must be externally serialized; derived
// reads are valid at any point after the first Add and further Adds stay
// accepted. All state averages promote pure states to density operators
// first, since the mean of pure states is not generally pure.
type MultiTraj interface {
	// Add folds one finished trajectory into the aggregate. The
	// trajectory's time grid and observable key set must match those of
	// the first trajectory added; on ErrShapeMismatch no accumulator is
	// touched.
	Add(traj *Result) error

	// NumTraj returns the number of trajectories added so far.
	NumTraj() int
	// NumChannels returns the number of collapse channels the event
	// histogram is sized for.
	NumChannels() int

	// Times returns the time grid of the first trajectory.
	Times() ([]float64, error)
	// Keys returns the observable keys, in binding order.
	Keys() ([]string, error)
	// RunStats returns the solver metadata of the first trajectory.
	RunStats() (map[string]any, error)

	// AverageStates returns the trajectory-averaged density operator at
	// each time point.
	AverageStates() ([]*quantum.Qobj, error)
	// AverageFinalState returns the trajectory-averaged final density
	// operator.
	AverageFinalState() (*quantum.Qobj, error)
	// SteadyState returns the time average of AverageStates. Only
	// meaningful on a uniform time grid.
	SteadyState() (*quantum.Qobj, error)

	// AverageExpect returns the mean of the observable over all
	// trajectories, pointwise in time.
	AverageExpect(key string) ([]float64, error)
	// StdExpect returns the population standard deviation (n
	// denominator) of the observable, pointwise in time.
	StdExpect(key string) ([]float64, error)

	// ExpectTrajAvg and ExpectTrajStd restrict the statistics to the
	// first ntraj trajectories (ntraj <= 0 means all). Only the
	// Retained realization can answer these; Streaming returns
	// ErrNotRetained.
	ExpectTrajAvg(key string, ntraj int) ([]float64, error)
	ExpectTrajStd(key string, ntraj int) ([]float64, error)

	// Photocurrent returns the per-channel collapse rate over time,
	// len(times)-1 bins per channel. Channels without events yield
	// all-zero bins.
	Photocurrent() ([][]float64, error)
	// Collapse returns each trajectory's collapse events.
	Collapse() [][]CollapseEvent
	// ColTimes and ColWhich split Collapse into parallel per-trajectory
	// time and channel-index lists.
	ColTimes() [][]float64
	ColWhich() [][]int
}

// checkShape validates a new trajectory against the aggregation template.
// Called before any accumulator mutation so a rejected Add is a no-op.
func checkShape(template, traj *Result) error {
	if len(traj.Times) != len(template.Times) {
		return fmt.Errorf("time grid has %d points, expected %d: %w",
			len(traj.Times), len(template.Times), ErrShapeMismatch)
	}
	tk, nk := template.Keys(), traj.Keys()
	if len(tk) != len(nk) {
		return fmt.Errorf("%d observables, expected %d: %w",
			len(nk), len(tk), ErrShapeMismatch)
	}
	for i := range tk {
		if tk[i] != nk[i] {
			return fmt.Errorf("observable %q, expected %q: %w", nk[i], tk[i], ErrShapeMismatch)
		}
	}
	if (len(traj.States) > 0) != (len(template.States) > 0) {
		return fmt.Errorf("state retention differs between trajectories: %w", ErrShapeMismatch)
	}
	if (traj.FinalState != nil) != (template.FinalState != nil) {
		return fmt.Errorf("final-state retention differs between trajectories: %w", ErrShapeMismatch)
	}
	return nil
}

// summarize renders the shared aggregate summary for both realizations.
func summarize(name string, m MultiTraj, template *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s\n  Solver: %s\n", name, template.Solver)
	fmt.Fprintf(&b, "  Trajectories: %d\n", m.NumTraj())
	fmt.Fprintf(&b, "  Number of e_ops: %d\n", template.NumEOps())
	fmt.Fprintf(&b, "  Collapse channels: %d\n", m.NumChannels())
	switch {
	case template.StoresStates():
		b.WriteString("  States saved.\n")
	case template.StoresFinalState():
		b.WriteString("  Final state saved.\n")
	default:
		b.WriteString("  State not saved.\n")
	}
	if len(template.Times) > 0 {
		fmt.Fprintf(&b, "  Time interval: [%g, %g] (%d steps)\n",
			template.Times[0], template.Times[len(template.Times)-1], len(template.Times))
	}
	b.WriteString(">")
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
