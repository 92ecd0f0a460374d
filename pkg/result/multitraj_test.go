package result_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perjlieb/qutip/pkg/quantum"
	"github.com/perjlieb/qutip/pkg/result"
)

// valueTraj builds a finished trajectory whose single observable "0"
// replays the given values over the time grid 0..n-1.
func valueTraj(t *testing.T, values []float64) *result.Result {
	t.Helper()
	i := 0
	r, err := result.New(result.Single(result.Func(
		func(_ float64, _ *quantum.Qobj) float64 {
			v := values[i]
			i++
			return v
		},
	)))
	require.NoError(t, err)
	for j := range values {
		r.Add(float64(j), quantum.Basis(2, 0))
	}
	return r
}

func aggregators(channels int) map[string]result.MultiTraj {
	return map[string]result.MultiTraj{
		"retained":  result.NewRetained(channels),
		"streaming": result.NewStreaming(channels),
	}
}

func TestDerivedReadsBeforeFirstAdd(t *testing.T) {
	for name, agg := range aggregators(1) {
		t.Run(name, func(t *testing.T) {
			_, err := agg.AverageExpect("0")
			assert.ErrorIs(t, err, result.ErrNoTrajectories)
			_, err = agg.Times()
			assert.ErrorIs(t, err, result.ErrNoTrajectories)
			_, err = agg.AverageStates()
			assert.ErrorIs(t, err, result.ErrNoTrajectories)
			_, err = agg.Photocurrent()
			assert.ErrorIs(t, err, result.ErrNoTrajectories)
			assert.Zero(t, agg.NumTraj())
		})
	}
}

func TestSingleTrajectoryIdentityObservable(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(valueTraj(t, []float64{0, 1, 2})))

			mean, err := agg.AverageExpect("0")
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 1, 2}, mean)

			std, err := agg.StdExpect("0")
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0, 0}, std)
		})
	}
}

func TestTwoTrajectoryMeanAndStd(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(valueTraj(t, []float64{1, 2, 3})))
			require.NoError(t, agg.Add(valueTraj(t, []float64{3, 2, 1})))

			mean, err := agg.AverageExpect("0")
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{2, 2, 2}, mean, 1e-12)

			std, err := agg.StdExpect("0")
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1, 0, 1}, std, 1e-12)

			assert.Equal(t, 2, agg.NumTraj())
		})
	}
}

func TestRealizationsAgree(t *testing.T) {
	runs := [][]float64{
		{0.1, 0.9, 0.4, 0.4},
		{0.2, 0.8, 0.6, 0.1},
		{0.7, 0.3, 0.5, 0.9},
		{0.5, 0.5, 0.5, 0.2},
	}
	ret := result.NewRetained(0)
	str := result.NewStreaming(0)
	for _, vals := range runs {
		require.NoError(t, ret.Add(valueTraj(t, vals)))
		require.NoError(t, str.Add(valueTraj(t, vals)))
	}

	meanR, err := ret.AverageExpect("0")
	require.NoError(t, err)
	meanS, err := str.AverageExpect("0")
	require.NoError(t, err)
	assert.InDeltaSlice(t, meanR, meanS, 1e-12)

	stdR, err := ret.StdExpect("0")
	require.NoError(t, err)
	stdS, err := str.StdExpect("0")
	require.NoError(t, err)
	assert.InDeltaSlice(t, stdR, stdS, 1e-9)
}

func stateTraj(t *testing.T, states ...*quantum.Qobj) *result.Result {
	t.Helper()
	r, err := result.New(nil)
	require.NoError(t, err)
	for i, s := range states {
		r.Add(float64(i), s)
	}
	return r
}

func TestAverageStatesPromotesToDensityOperators(t *testing.T) {
	g, e := quantum.Basis(2, 0), quantum.Basis(2, 1)
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(stateTraj(t, g, g)))
			require.NoError(t, agg.Add(stateTraj(t, e, g)))

			avg, err := agg.AverageStates()
			require.NoError(t, err)
			require.Len(t, avg, 2)

			// First time point: half ground, half excited.
			mixed := quantum.Qeye(2).Scale(0.5)
			assert.True(t, avg[0].EqualApprox(mixed, 1e-12))
			// Second time point: both ground.
			assert.True(t, avg[1].EqualApprox(g.Proj(), 1e-12))

			final, err := agg.AverageFinalState()
			require.NoError(t, err)
			assert.True(t, final.EqualApprox(g.Proj(), 1e-12))
		})
	}
}

func TestSteadyState(t *testing.T) {
	g, e := quantum.Basis(2, 0), quantum.Basis(2, 1)
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(stateTraj(t, g, e)))

			ss, err := agg.SteadyState()
			require.NoError(t, err)
			mixed := quantum.Qeye(2).Scale(0.5)
			assert.True(t, ss.EqualApprox(mixed, 1e-12))
		})
	}
}

func TestStateAveragesUnavailableWithoutRetention(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(valueTraj(t, []float64{1, 2})))
			_, err := agg.AverageStates()
			assert.ErrorIs(t, err, result.ErrNoStates)
			_, err = agg.AverageFinalState()
			assert.ErrorIs(t, err, result.ErrNoStates)
		})
	}
}

func TestUnknownKey(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(valueTraj(t, []float64{1})))
			_, err := agg.AverageExpect("nope")
			assert.ErrorIs(t, err, result.ErrUnknownKey)
			_, err = agg.StdExpect("nope")
			assert.ErrorIs(t, err, result.ErrUnknownKey)
		})
	}
}

func TestShapeMismatchRejectedWithoutPartialUpdate(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(valueTraj(t, []float64{1, 2, 3})))

			err := agg.Add(valueTraj(t, []float64{1, 2}))
			require.ErrorIs(t, err, result.ErrShapeMismatch)

			// The failed Add must not have touched the aggregate.
			assert.Equal(t, 1, agg.NumTraj())
			mean, err := agg.AverageExpect("0")
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 2, 3}, mean)
			assert.Len(t, agg.Collapse(), 1)
		})
	}
}

func TestKeySetMismatchRejected(t *testing.T) {
	named := func(key string) *result.Result {
		r, err := result.New([]result.EOp{{Key: key, Spec: result.Func(
			func(t float64, _ *quantum.Qobj) float64 { return t },
		)}})
		require.NoError(t, err)
		r.Add(0, quantum.Basis(2, 0))
		return r
	}
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(named("a")))
			err := agg.Add(named("b"))
			assert.ErrorIs(t, err, result.ErrShapeMismatch)
		})
	}
}

func TestWindowedQueries(t *testing.T) {
	ret := result.NewRetained(0)
	require.NoError(t, ret.Add(valueTraj(t, []float64{1, 2, 3})))
	require.NoError(t, ret.Add(valueTraj(t, []float64{3, 2, 1})))
	require.NoError(t, ret.Add(valueTraj(t, []float64{5, 2, 5})))

	// First two trajectories only.
	mean, err := ret.ExpectTrajAvg("0", 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 2, 2}, mean, 1e-12)

	std, err := ret.ExpectTrajStd("0", 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 1}, std, 1e-12)

	// ntraj <= 0 means all three.
	all, err := ret.ExpectTrajAvg("0", 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 2, 3}, all, 1e-12)
}

func TestWindowedQueriesNotAvailableWhenStreaming(t *testing.T) {
	str := result.NewStreaming(0)
	require.NoError(t, str.Add(valueTraj(t, []float64{1, 2, 3})))

	_, err := str.ExpectTrajAvg("0", 1)
	assert.ErrorIs(t, err, result.ErrNotRetained)
	_, err = str.ExpectTrajStd("0", 1)
	assert.ErrorIs(t, err, result.ErrNotRetained)
}

func TestRetainedRawAccess(t *testing.T) {
	ret := result.NewRetained(0)
	require.NoError(t, ret.Add(valueTraj(t, []float64{1, 2})))
	require.NoError(t, ret.Add(valueTraj(t, []float64{3, 4})))

	runs, err := ret.RunsExpect("0")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, []float64{1, 2}, runs[0])
	assert.Equal(t, []float64{3, 4}, runs[1])
	assert.Len(t, ret.Trajectories(), 2)
}

func collapseTraj(t *testing.T, times []float64, events []result.CollapseEvent) *result.Result {
	t.Helper()
	r, err := result.New(result.Single(result.Func(
		func(t float64, _ *quantum.Qobj) float64 { return t },
	)))
	require.NoError(t, err)
	for _, tp := range times {
		r.Add(tp, quantum.Basis(2, 0))
	}
	for _, ev := range events {
		r.AddCollapse(ev.Time, ev.Which)
	}
	return r
}

func TestPhotocurrent(t *testing.T) {
	grid := []float64{0, 1, 2}
	for name, agg := range aggregators(2) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, agg.Add(collapseTraj(t, grid, []result.CollapseEvent{
				{Time: 0.5, Which: 0},
				{Time: 1.5, Which: 0},
			})))
			require.NoError(t, agg.Add(collapseTraj(t, grid, []result.CollapseEvent{
				{Time: 0.25, Which: 0},
			})))

			rates, err := agg.Photocurrent()
			require.NoError(t, err)
			require.Len(t, rates, 2)

			// Channel 0: 2 events in [0,1), 1 in [1,2]; widths 1, 2 trajectories.
			assert.InDeltaSlice(t, []float64{1, 0.5}, rates[0], 1e-12)
			// Channel 1 saw no events: all-zero bins of length len(grid)-1.
			assert.Equal(t, []float64{0, 0}, rates[1])
		})
	}
}

func TestPhotocurrentEdgeEvents(t *testing.T) {
	grid := []float64{0, 1, 2}
	agg := result.NewRetained(1)
	require.NoError(t, agg.Add(collapseTraj(t, grid, []result.CollapseEvent{
		{Time: 0, Which: 0},   // left edge: first bin
		{Time: 1, Which: 0},   // interior edge: second bin
		{Time: 2, Which: 0},   // right edge: last bin
		{Time: 2.5, Which: 0}, // outside the grid: ignored
	})))

	rates, err := agg.Photocurrent()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, rates[0], 1e-12)
}

func TestCollapseViews(t *testing.T) {
	agg := result.NewStreaming(2)
	require.NoError(t, agg.Add(collapseTraj(t, []float64{0, 1}, []result.CollapseEvent{
		{Time: 0.2, Which: 1},
		{Time: 0.8, Which: 0},
	})))
	require.NoError(t, agg.Add(collapseTraj(t, []float64{0, 1}, nil)))

	assert.Equal(t, [][]float64{{0.2, 0.8}, {}}, agg.ColTimes())
	assert.Equal(t, [][]int{{1, 0}, {}}, agg.ColWhich())
}

func TestAggregateSummary(t *testing.T) {
	for name, agg := range aggregators(1) {
		t.Run(name, func(t *testing.T) {
			r, err := result.New(
				result.Single(result.Oper(quantum.Num())),
				result.WithSolver("mcsolve"),
			)
			require.NoError(t, err)
			r.Add(0, quantum.Basis(2, 0))
			r.Add(1, quantum.Basis(2, 0))
			require.NoError(t, agg.Add(r))

			s := agg.(interface{ String() string }).String()
			assert.Contains(t, s, "Solver: mcsolve")
			assert.Contains(t, s, "Trajectories: 1")
			assert.Contains(t, s, "Collapse channels: 1")
		})
	}
}

func TestRunStats(t *testing.T) {
	for name, agg := range aggregators(0) {
		t.Run(name, func(t *testing.T) {
			r, err := result.New(nil, result.WithStats(map[string]any{"method": "euler"}))
			require.NoError(t, err)
			r.Add(0, quantum.Basis(2, 0))
			require.NoError(t, agg.Add(r))

			stats, err := agg.RunStats()
			require.NoError(t, err)
			assert.Equal(t, "euler", stats["method"])
		})
	}
}
