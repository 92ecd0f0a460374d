package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perjlieb/qutip/pkg/quantum"
	"github.com/perjlieb/qutip/pkg/result"
	"github.com/perjlieb/qutip/pkg/runner"
)

func newRecorder() (*result.Result, error) {
	return result.New(result.Single(result.Func(
		func(t float64, _ *quantum.Qobj) float64 { return t },
	)))
}

func record(ctx context.Context, id string, rec *result.Result) error {
	for i := 0; i < 3; i++ {
		rec.Add(float64(i), quantum.Basis(2, 0))
	}
	return nil
}

func TestRunFoldsAllTrajectories(t *testing.T) {
	r := runner.New()
	r.Workers = 4
	agg := result.NewStreaming(0)

	require.NoError(t, r.Run(context.Background(), agg, newRecorder, 16, record))
	assert.Equal(t, 16, agg.NumTraj())

	mean, err := agg.AverageExpect("0")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 2}, mean, 1e-12)
}

func TestRunAssignsUniqueTrajectoryIDs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	r := runner.New()
	r.Workers = 2
	agg := result.NewRetained(0)
	err := r.Run(context.Background(), agg, newRecorder, 8,
		func(ctx context.Context, id string, rec *result.Result) error {
			mu.Lock()
			seen[id]++
			mu.Unlock()
			require.Equal(t, id, rec.Stats["trajectory_id"])
			return record(ctx, id, rec)
		})
	require.NoError(t, err)
	assert.Len(t, seen, 8)
}

func TestRunPropagatesTrajectoryError(t *testing.T) {
	boom := errors.New("solver blew up")
	r := runner.New()
	r.Workers = 2
	agg := result.NewStreaming(0)

	err := r.Run(context.Background(), agg, newRecorder, 8,
		func(ctx context.Context, id string, rec *result.Result) error {
			return boom
		})
	require.ErrorIs(t, err, boom)
}

func TestRunPropagatesRecorderError(t *testing.T) {
	r := runner.New()
	agg := result.NewStreaming(0)
	err := r.Run(context.Background(), agg,
		func() (*result.Result, error) {
			return result.New([]result.EOp{{Key: "bad"}})
		}, 4, record)
	require.ErrorIs(t, err, result.ErrUnsupportedEOp)
}

func TestRunPropagatesAggregationError(t *testing.T) {
	length := 0
	var mu sync.Mutex
	r := runner.New()
	r.Workers = 1
	agg := result.NewStreaming(0)

	// Second trajectory records a shorter grid: shape mismatch at Add.
	err := r.Run(context.Background(), agg, newRecorder, 2,
		func(ctx context.Context, id string, rec *result.Result) error {
			mu.Lock()
			length++
			n := 4 - length
			mu.Unlock()
			for i := 0; i < n; i++ {
				rec.Add(float64(i), quantum.Basis(2, 0))
			}
			return nil
		})
	require.ErrorIs(t, err, result.ErrShapeMismatch)
	assert.Equal(t, 1, agg.NumTraj())
}

func TestRunRejectsNonPositiveCount(t *testing.T) {
	r := runner.New()
	require.Error(t, r.Run(context.Background(), result.NewStreaming(0), newRecorder, 0, record))
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := runner.New()
	err := r.Run(ctx, result.NewStreaming(0), newRecorder, 4, record)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := runner.NewMetrics(reg)

	r := runner.New()
	r.Workers = 2
	r.Metrics = m
	agg := result.NewStreaming(0)
	require.NoError(t, r.Run(context.Background(), agg, newRecorder, 5, record))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Completed))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Failed))
}
