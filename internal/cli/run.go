package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/perjlieb/qutip"
	"github.com/perjlieb/qutip/internal/mc"
	"github.com/perjlieb/qutip/pkg/quantum"
	"github.com/perjlieb/qutip/pkg/result"
	"github.com/perjlieb/qutip/pkg/runner"
)

// ObservableKey is the key under which the demo batch records the
// excitation number.
const ObservableKey = "n"

// RunBatch executes the configured demo batch and returns its aggregate.
func RunBatch(ctx context.Context, cfg Config, logger *slog.Logger, metrics *runner.Metrics) (result.MultiTraj, error) {
	solver, err := mc.New(cfg.Gamma, cfg.TimeStep, cfg.Steps)
	if err != nil {
		return nil, fmt.Errorf("invalid solver parameters: %w", err)
	}

	opts := []qutip.Option{
		qutip.WithObservables([]result.EOp{
			{Key: ObservableKey, Spec: result.Oper(quantum.Num())},
		}),
		qutip.WithChannels(1),
		qutip.WithSolverName(mc.SolverName),
		qutip.WithStats(solver.Stats()),
		qutip.WithKeepTrajectories(cfg.KeepTrajectories),
		qutip.WithLogger(logger),
		qutip.WithWorkers(cfg.Workers),
		qutip.WithMetrics(metrics),
	}
	if cfg.StoreStates {
		opts = append(opts, qutip.WithStoreStates(true))
	}

	exp, err := qutip.New(opts...)
	if err != nil {
		return nil, err
	}

	// Each trajectory draws a distinct, reproducible seed.
	var next atomic.Uint64
	next.Store(cfg.Seed)
	return exp.Run(ctx, cfg.Trajectories,
		func(ctx context.Context, id string, rec *result.Result) error {
			return solver.RunTrajectory(ctx, rec, next.Add(1))
		})
}
