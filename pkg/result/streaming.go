package result

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/perjlieb/qutip/pkg/quantum"
)

// Streaming aggregates trajectories into running sums: density-promoted
// state sums per time index, a final-state sum, and per-observable sum
// and sum-of-squares arrays. Memory stays constant as trajectories are
// added; only the first trajectory is kept, as the shape and metadata
// template. Per-trajectory queries are not available.
//
// StdExpect is computed as sqrt(E[X²]−E[X]²), which can cancel to a
// slightly negative value when the true variance is near zero; the value
// under the square root is clamped to zero.
type Streaming struct {
	template *Result

	sumStates []*quantum.Qobj
	sumFinal  *quantum.Qobj

	keys      []string
	sumExpect map[string][]float64
	sm2Expect map[string][]float64

	num    int
	events collapseLog
}

var _ MultiTraj = (*Streaming)(nil)

// NewStreaming builds a streaming aggregator expecting numChannels
// collapse channels (0 for deterministic solvers).
func NewStreaming(numChannels int) *Streaming {
	return &Streaming{events: collapseLog{numChannels: numChannels}}
}

// Add folds the trajectory into the running sums. The first trajectory
// seeds the accumulators and is retained as the template; later ones are
// validated against it before any accumulator is touched, so a rejected
// Add leaves the aggregate unchanged.
func (m *Streaming) Add(traj *Result) error {
	if m.num == 0 {
		m.seed(traj)
	} else {
		if err := checkShape(m.template, traj); err != nil {
			return err
		}
		m.fold(traj)
	}
	m.events.append(traj.Collapse())
	m.num++
	return nil
}

func (m *Streaming) seed(traj *Result) {
	m.template = traj
	if len(traj.States) > 0 {
		m.sumStates = make([]*quantum.Qobj, len(traj.States))
		for i, s := range traj.States {
			m.sumStates[i] = s.Proj()
		}
	}
	if traj.FinalState != nil {
		m.sumFinal = traj.FinalState.Proj()
	}
	m.keys = traj.Keys()
	m.sumExpect = make(map[string][]float64, len(m.keys))
	m.sm2Expect = make(map[string][]float64, len(m.keys))
	for _, k := range m.keys {
		vals := traj.Expect(k)
		sum := make([]float64, len(vals))
		copy(sum, vals)
		sm2 := make([]float64, len(vals))
		floats.MulTo(sm2, vals, vals)
		m.sumExpect[k] = sum
		m.sm2Expect[k] = sm2
	}
}

func (m *Streaming) fold(traj *Result) {
	for i, s := range traj.States {
		m.sumStates[i] = m.sumStates[i].Add(s.Proj())
	}
	if m.sumFinal != nil {
		m.sumFinal = m.sumFinal.Add(traj.FinalState.Proj())
	}
	for _, k := range m.keys {
		vals := traj.Expect(k)
		floats.Add(m.sumExpect[k], vals)
		sq := make([]float64, len(vals))
		floats.MulTo(sq, vals, vals)
		floats.Add(m.sm2Expect[k], sq)
	}
}

// NumTraj returns the number of trajectories folded in.
func (m *Streaming) NumTraj() int { return m.num }

// NumChannels returns the number of collapse channels.
func (m *Streaming) NumChannels() int { return m.events.numChannels }

func (m *Streaming) templ() (*Result, error) {
	if m.num == 0 {
		return nil, ErrNoTrajectories
	}
	return m.template, nil
}

// Times returns the time grid of the template trajectory.
func (m *Streaming) Times() ([]float64, error) {
	t, err := m.templ()
	if err != nil {
		return nil, err
	}
	return t.Times, nil
}

// Keys returns the observable keys.
func (m *Streaming) Keys() ([]string, error) {
	if _, err := m.templ(); err != nil {
		return nil, err
	}
	return m.keys, nil
}

// RunStats returns the solver metadata of the template trajectory.
func (m *Streaming) RunStats() (map[string]any, error) {
	t, err := m.templ()
	if err != nil {
		return nil, err
	}
	return t.Stats, nil
}

// AverageStates returns the trajectory-averaged density operator at each
// time point.
func (m *Streaming) AverageStates() ([]*quantum.Qobj, error) {
	if _, err := m.templ(); err != nil {
		return nil, err
	}
	if m.sumStates == nil {
		return nil, ErrNoStates
	}
	out := make([]*quantum.Qobj, len(m.sumStates))
	n := float64(m.num)
	for i, s := range m.sumStates {
		out[i] = s.Div(n)
	}
	return out, nil
}

// AverageFinalState returns the trajectory-averaged final density
// operator.
func (m *Streaming) AverageFinalState() (*quantum.Qobj, error) {
	if _, err := m.templ(); err != nil {
		return nil, err
	}
	if m.sumFinal == nil {
		return nil, ErrNoStates
	}
	return m.sumFinal.Div(float64(m.num)), nil
}

// SteadyState returns the time average of AverageStates.
func (m *Streaming) SteadyState() (*quantum.Qobj, error) {
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

func (m *Streaming) sums(key string) (sum, sm2 []float64, err error) {
	if _, err := m.templ(); err != nil {
		return nil, nil, err
	}
	sum, ok := m.sumExpect[key]
	if !ok {
		return nil, nil, fmt.Errorf("observable %q: %w", key, ErrUnknownKey)
	}
	return sum, m.sm2Expect[key], nil
}

// AverageExpect returns the pointwise mean of the observable.
func (m *Streaming) AverageExpect(key string) ([]float64, error) {
	sum, _, err := m.sums(key)
	if err != nil {
		return nil, err
	}
	mean := make([]float64, len(sum))
	copy(mean, sum)
	floats.Scale(1/float64(m.num), mean)
	return mean, nil
}

// StdExpect returns the pointwise population standard deviation, from the
// running sum and sum of squares.
func (m *Streaming) StdExpect(key string) ([]float64, error) {
	sum, sm2, err := m.sums(key)
	if err != nil {
		return nil, err
	}
	n := float64(m.num)
	std := make([]float64, len(sum))
	for i := range std {
		mean := sum[i] / n
		v := sm2[i]/n - mean*mean
		if v < 0 {
			v = 0
		}
		std[i] = math.Sqrt(v)
	}
	return std, nil
}

// ExpectTrajAvg is unavailable: individual trajectories are discarded.
func (m *Streaming) ExpectTrajAvg(key string, ntraj int) ([]float64, error) {
	return nil, ErrNotRetained
}

// ExpectTrajStd is unavailable: individual trajectories are discarded.
func (m *Streaming) ExpectTrajStd(key string, ntraj int) ([]float64, error) {
	return nil, ErrNotRetained
}

// Photocurrent returns the per-channel collapse rate over time.
func (m *Streaming) Photocurrent() ([][]float64, error) {
	t, err := m.templ()
	if err != nil {
		return nil, err
	}
	return m.events.photocurrent(t.Times, m.num)
}

// Collapse returns each trajectory's collapse events.
func (m *Streaming) Collapse() [][]CollapseEvent { return m.events.collapse() }

// ColTimes returns the per-trajectory collapse times.
func (m *Streaming) ColTimes() [][]float64 { return m.events.colTimes() }

// ColWhich returns the per-trajectory collapse channel indices.
func (m *Streaming) ColWhich() [][]int { return m.events.colWhich() }

// String returns a human-readable summary.
func (m *Streaming) String() string {
	t, err := m.templ()
	if err != nil {
		return "<Streaming (empty)>"
	}
	return summarize("Streaming", m, t)
}
