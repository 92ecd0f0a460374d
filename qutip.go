package qutip

import (
	"context"
	"log/slog"

	"github.com/perjlieb/qutip/pkg/result"
	"github.com/perjlieb/qutip/pkg/runner"
)

// Experiment is the high-level entry point for running an ensemble of
// trajectories. It holds the observable bindings and recording policy
// shared by every trajectory, vends matched recorders and aggregators,
// and can drive a whole batch through the runner.
type Experiment struct {
	eops        []result.EOp
	channels    int
	keepRuns    bool
	storeStates *bool
	storeFinal  bool
	solverName  string
	stats       map[string]any
	logger      *slog.Logger
	workers     int
	metrics     *runner.Metrics
}

// Option defines a functional option for configuring an Experiment.
type Option func(*Experiment)

// WithObservables sets the quantities recorded at every sample.
func WithObservables(eops []result.EOp) Option {
	return func(e *Experiment) { e.eops = eops }
}

// WithChannels sets the number of collapse channels the event histogram
// is sized for (0 for deterministic solvers).
func WithChannels(n int) Option {
	return func(e *Experiment) { e.channels = n }
}

// WithKeepTrajectories selects the retaining aggregator, which keeps
// every trajectory for re-analysis. The default is the streaming
// aggregator, whose memory stays constant in the number of trajectories.
func WithKeepTrajectories(keep bool) Option {
	return func(e *Experiment) { e.keepRuns = keep }
}

// WithStoreStates forces per-sample state retention on or off for every
// recorder. Unset, states are kept only when no observables are bound.
func WithStoreStates(v bool) Option {
	return func(e *Experiment) { e.storeStates = &v }
}

// WithStoreFinalState requests retention of each trajectory's last state.
func WithStoreFinalState(v bool) Option {
	return func(e *Experiment) { e.storeFinal = v }
}

// WithSolverName records the driving solver's name on every trajectory.
func WithSolverName(name string) Option {
	return func(e *Experiment) { e.solverName = name }
}

// WithStats attaches shared solver metadata; each recorder receives its
// own copy, so per-trajectory additions do not leak across runs.
func WithStats(stats map[string]any) Option {
	return func(e *Experiment) { e.stats = stats }
}

// WithLogger sets a structured logger for batch runs.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Experiment) { e.logger = logger }
}

// WithWorkers bounds batch concurrency (0 means GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(e *Experiment) { e.workers = n }
}

// WithMetrics attaches prometheus instruments to batch runs.
func WithMetrics(m *runner.Metrics) Option {
	return func(e *Experiment) { e.metrics = m }
}

// New initializes an Experiment. The observable bindings are validated
// here, so a misconfigured observable fails before any trajectory runs.
func New(opts ...Option) (*Experiment, error) {
	e := &Experiment{}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := e.NewRecorder(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewRecorder builds a fresh trajectory recorder with the experiment's
// bindings and recording policy.
func (e *Experiment) NewRecorder() (*result.Result, error) {
	opts := []result.Option{
		result.WithSolver(e.solverName),
		result.WithStoreFinalState(e.storeFinal),
	}
	if e.storeStates != nil {
		opts = append(opts, result.WithStoreStates(*e.storeStates))
	}
	stats := make(map[string]any, len(e.stats))
	for k, v := range e.stats {
		stats[k] = v
	}
	opts = append(opts, result.WithStats(stats))
	return result.New(e.eops, opts...)
}

// NewAggregator builds an empty aggregator matching the experiment's
// configuration.
func (e *Experiment) NewAggregator() result.MultiTraj {
	if e.keepRuns {
		return result.NewRetained(e.channels)
	}
	return result.NewStreaming(e.channels)
}

// Run executes ntraj trajectories through fn and returns the aggregate.
func (e *Experiment) Run(ctx context.Context, ntraj int, fn runner.TrajectoryFunc) (result.MultiTraj, error) {
	r := runner.New()
	r.Workers = e.workers
	r.Metrics = e.metrics
	if e.logger != nil {
		r.Logger = e.logger
	}

	agg := e.NewAggregator()
	if err := r.Run(ctx, agg, e.NewRecorder, ntraj, fn); err != nil {
		return nil, err
	}
	return agg, nil
}
