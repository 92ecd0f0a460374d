package result

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/perjlieb/qutip/pkg/quantum"
)

// Retained aggregates trajectories by keeping every one of them. Derived
// statistics are recomputed from the full collection on each access, and
// per-trajectory queries (raw access, first-K windows) stay available.
// Memory grows linearly with the number of trajectories added.
type Retained struct {
	trajectories []*Result
	events       collapseLog
}

var _ MultiTraj = (*Retained)(nil)

// NewRetained builds a retaining aggregator expecting numChannels
// collapse channels (0 for deterministic solvers).
func NewRetained(numChannels int) *Retained {
	return &Retained{events: collapseLog{numChannels: numChannels}}
}

// Add appends the trajectory to the retained collection.
func (m *Retained) Add(traj *Result) error {
	if len(m.trajectories) > 0 {
		if err := checkShape(m.trajectories[0], traj); err != nil {
			return err
		}
	}
	m.trajectories = append(m.trajectories, traj)
	m.events.append(traj.Collapse())
	return nil
}

// NumTraj returns the number of trajectories added.
func (m *Retained) NumTraj() int { return len(m.trajectories) }

// NumChannels returns the number of collapse channels.
func (m *Retained) NumChannels() int { return m.events.numChannels }

// Trajectories returns the retained trajectory records, in arrival order.
func (m *Retained) Trajectories() []*Result { return m.trajectories }

func (m *Retained) template() (*Result, error) {
	if len(m.trajectories) == 0 {
		return nil, ErrNoTrajectories
	}
	return m.trajectories[0], nil
}

// Times returns the time grid of the first trajectory.
func (m *Retained) Times() ([]float64, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	return t.Times, nil
}

// Keys returns the observable keys.
func (m *Retained) Keys() ([]string, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	return t.Keys(), nil
}

// RunStats returns the solver metadata of the first trajectory.
func (m *Retained) RunStats() (map[string]any, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	return t.Stats, nil
}

// AverageStates returns the trajectory-averaged density operator at each
// time point.
func (m *Retained) AverageStates() ([]*quantum.Qobj, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	if len(t.States) == 0 {
		return nil, ErrNoStates
	}
	sums := make([]*quantum.Qobj, len(t.States))
	for i, s := range t.States {
		sums[i] = s.Proj()
	}
	for _, traj := range m.trajectories[1:] {
		for i, s := range traj.States {
			sums[i] = sums[i].Add(s.Proj())
		}
	}
	n := float64(len(m.trajectories))
	for i := range sums {
		sums[i] = sums[i].Div(n)
	}
	return sums, nil
}

// AverageFinalState returns the trajectory-averaged final density
// operator.
func (m *Retained) AverageFinalState() (*quantum.Qobj, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	if t.FinalState == nil {
		return nil, ErrNoStates
	}
	sum := t.FinalState.Proj()
	for _, traj := range m.trajectories[1:] {
		sum = sum.Add(traj.FinalState.Proj())
	}
	return sum.Div(float64(len(m.trajectories))), nil
}

// SteadyState returns the time average of AverageStates.
func (m *Retained) SteadyState() (*quantum.Qobj, error) {
	avg, err := m.AverageStates()
	if err != nil {
		return nil, err
	}
	sum := avg[0]
	for _, s := range avg[1:] {
		sum = sum.Add(s)
	}
	return sum.Div(float64(len(avg))), nil
}

// RunsExpect returns the raw per-trajectory values of the observable.
func (m *Retained) RunsExpect(key string) ([][]float64, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	if t.Expect(key) == nil {
		return nil, fmt.Errorf("observable %q: %w", key, ErrUnknownKey)
	}
	out := make([][]float64, len(m.trajectories))
	for i, traj := range m.trajectories {
		out[i] = traj.Expect(key)
	}
	return out, nil
}

// AverageExpect returns the pointwise mean of the observable.
func (m *Retained) AverageExpect(key string) ([]float64, error) {
	return m.ExpectTrajAvg(key, 0)
}

// StdExpect returns the pointwise population standard deviation.
func (m *Retained) StdExpect(key string) ([]float64, error) {
	return m.ExpectTrajStd(key, 0)
}

// ExpectTrajAvg returns the pointwise mean over the first ntraj
// trajectories (ntraj <= 0 or beyond the count means all).
func (m *Retained) ExpectTrajAvg(key string, ntraj int) ([]float64, error) {
	window, err := m.window(key, ntraj)
	if err != nil {
		return nil, err
	}
	mean := make([]float64, len(window[0]))
	for _, vals := range window {
		floats.Add(mean, vals)
	}
	floats.Scale(1/float64(len(window)), mean)
	return mean, nil
}

// ExpectTrajStd returns the pointwise population standard deviation over
// the first ntraj trajectories. Computed in two passes over the retained
// values, which is numerically stabler than the streaming realization's
// sum-of-squares form.
func (m *Retained) ExpectTrajStd(key string, ntraj int) ([]float64, error) {
	window, err := m.window(key, ntraj)
	if err != nil {
		return nil, err
	}
	mean := make([]float64, len(window[0]))
	for _, vals := range window {
		floats.Add(mean, vals)
	}
	n := float64(len(window))
	floats.Scale(1/n, mean)

	std := make([]float64, len(mean))
	for _, vals := range window {
		for i, v := range vals {
			d := v - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
	}
	return std, nil
}

func (m *Retained) window(key string, ntraj int) ([][]float64, error) {
	runs, err := m.RunsExpect(key)
	if err != nil {
		return nil, err
	}
	if ntraj <= 0 || ntraj > len(runs) {
		ntraj = len(runs)
	}
	return runs[:ntraj], nil
}

// Photocurrent returns the per-channel collapse rate over time.
func (m *Retained) Photocurrent() ([][]float64, error) {
	t, err := m.template()
	if err != nil {
		return nil, err
	}
	return m.events.photocurrent(t.Times, len(m.trajectories))
}

// Collapse returns each trajectory's collapse events.
func (m *Retained) Collapse() [][]CollapseEvent { return m.events.collapse() }

// ColTimes returns the per-trajectory collapse times.
func (m *Retained) ColTimes() [][]float64 { return m.events.colTimes() }

// ColWhich returns the per-trajectory collapse channel indices.
func (m *Retained) ColWhich() [][]int { return m.events.colWhich() }

// String returns a human-readable summary.
func (m *Retained) String() string {
	t, err := m.template()
	if err != nil {
		return "<Retained (empty)>"
	}
	return summarize("Retained", m, t)
}
