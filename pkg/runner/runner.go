// Package runner drives batches of independent trajectories and feeds
// each finished record into an aggregator.
//
// Recorders are exclusively owned by their worker while a trajectory is
// running; the aggregator is the single point where results meet. A lone
// collector goroutine is the only caller of MultiTraj.Add, which gives
// the serialization the aggregator contract requires without locking.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/perjlieb/qutip/pkg/result"
)

// TrajectoryFunc runs one trajectory to completion, recording its samples
// into rec. id is the unique trajectory identifier assigned by the
// runner; it is also available as rec.Stats["trajectory_id"].
type TrajectoryFunc func(ctx context.Context, id string, rec *result.Result) error

// Runner executes trajectories on a bounded worker pool.
type Runner struct {
	// Workers is the number of concurrent trajectories. Zero or
	// negative means GOMAXPROCS.
	Workers int

	// Logger receives batch progress. If nil, logging is discarded.
	Logger *slog.Logger

	// Metrics, when non-nil, receives per-trajectory counters and
	// durations.
	Metrics *Metrics
}

// New returns a Runner with default settings.
func New() *Runner {
	return &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Run executes ntraj trajectories and folds each finished record into
// agg. newRecorder is called once per trajectory; fn drives the solver.
// The first failure (trajectory error, recorder construction error, or
// aggregation error) cancels the remaining work and is returned.
func (r *Runner) Run(ctx context.Context, agg result.MultiTraj, newRecorder func() (*result.Result, error), ntraj int, fn TrajectoryFunc) error {
	if ntraj <= 0 {
		return fmt.Errorf("trajectory count must be positive, got %d", ntraj)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > ntraj {
		workers = ntraj
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan struct{})
	finished := make(chan *result.Result)
	errc := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				rec, err := r.runOne(ctx, newRecorder, fn, logger)
				if err != nil {
					errc <- err
					cancel()
					return
				}
				select {
				case finished <- rec:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < ntraj; i++ {
			select {
			case jobs <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(finished)
	}()

	start := time.Now()
	logger.Info("batch started", "trajectories", ntraj, "workers", workers)

	var addErr error
	for rec := range finished {
		if addErr != nil {
			continue // drain
		}
		if err := agg.Add(rec); err != nil {
			addErr = fmt.Errorf("aggregating trajectory: %w", err)
			cancel()
			continue
		}
		if r.Metrics != nil {
			r.Metrics.Completed.Inc()
		}
	}

	if addErr != nil {
		return addErr
	}
	select {
	case err := <-errc:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("batch finished",
		"trajectories", agg.NumTraj(),
		"elapsed", time.Since(start))
	return nil
}

func (r *Runner) runOne(ctx context.Context, newRecorder func() (*result.Result, error), fn TrajectoryFunc, logger *slog.Logger) (*result.Result, error) {
	id := uuid.NewString()
	rec, err := newRecorder()
	if err != nil {
		return nil, fmt.Errorf("building recorder: %w", err)
	}
	rec.Stats["trajectory_id"] = id

	start := time.Now()
	err = fn(ctx, id, rec)
	elapsed := time.Since(start)
	if r.Metrics != nil {
		r.Metrics.Duration.Observe(elapsed.Seconds())
	}
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.Failed.Inc()
		}
		return nil, fmt.Errorf("trajectory %s: %w", id, err)
	}
	logger.Debug("trajectory finished",
		"trajectory_id", id,
		"samples", len(rec.Times),
		"collapses", len(rec.Collapse()),
		"elapsed", elapsed)
	return rec, nil
}
