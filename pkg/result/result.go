package result

import (
	"fmt"
	"strings"

	"github.com/perjlieb/qutip/pkg/quantum"
)

// Processor consumes one recorded sample. Processors must not mutate the
// state they are given; a processor that retains the state must be
// registered with requiresCopy set.
type Processor func(t float64, state *quantum.Qobj)

// CollapseEvent is one discrete stochastic jump: the time it occurred and
// the index of the collapse channel responsible.
type CollapseEvent struct {
	Time  float64
	Which int
}

// CopyFunc produces the per-sample state copy. Overridable so derived
// recorders can copy differently (or instrument copying in tests).
type CopyFunc func(state *quantum.Qobj) *quantum.Qobj

// Option configures a Result at construction.
type Option func(*Result)

// WithSolver records the name of the solver producing this trajectory.
func WithSolver(name string) Option {
	return func(r *Result) { r.Solver = name }
}

// WithStats attaches opaque solver metadata. The map is stored as given
// and never mutated by the recorder.
func WithStats(stats map[string]any) Option {
	return func(r *Result) { r.Stats = stats }
}

// WithStoreStates forces state retention on or off. When unset, states
// are retained only if no observables were bound, so that a trajectory
// always records something.
func WithStoreStates(v bool) Option {
	return func(r *Result) { r.storeStates = &v }
}

// WithStoreFinalState requests retention of the last recorded state.
func WithStoreFinalState(v bool) Option {
	return func(r *Result) { r.storeFinalState = v }
}

// WithCopyFunc overrides how the per-sample state copy is produced.
func WithCopyFunc(f CopyFunc) Option {
	return func(r *Result) { r.copyFn = f }
}

// Result records one trajectory: the sample times, the observable values,
// optionally the states, and any collapse events. It is exclusively owned
// by the running trajectory and provides no internal synchronization;
// once handed to an aggregator it must no longer be mutated.
type Result struct {
	Solver string
	Stats  map[string]any

	Times      []float64
	States     []*quantum.Qobj
	FinalState *quantum.Qobj

	bounds []*boundEOp
	byKey  map[string]*boundEOp

	collapse []CollapseEvent

	processors   []Processor
	requiresCopy bool

	storeStates     *bool
	storeFinalState bool
	copyFn          CopyFunc
}

// New builds a recorder for one trajectory. The observable specs are
// resolved immediately; an unsupported spec fails here, before the solver
// can take a single sample.
func New(eops []EOp, opts ...Option) (*Result, error) {
	r := &Result{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Stats == nil {
		r.Stats = make(map[string]any)
	}
	if r.copyFn == nil {
		r.copyFn = func(state *quantum.Qobj) *quantum.Qobj { return state.Copy() }
	}

	bounds, err := bind(eops)
	if err != nil {
		return nil, err
	}
	r.bounds = bounds
	r.byKey = make(map[string]*boundEOp, len(bounds))
	for _, b := range bounds {
		r.byKey[b.key] = b
		r.AddProcessor(b.store, false)
	}

	storeStates := r.storeStates != nil && *r.storeStates
	if r.storeStates == nil {
		storeStates = len(r.bounds) == 0
	}
	if storeStates {
		r.AddProcessor(func(t float64, state *quantum.Qobj) {
			r.States = append(r.States, state)
		}, true)
	}
	if storeStates || r.storeFinalState {
		r.AddProcessor(func(t float64, state *quantum.Qobj) {
			r.FinalState = state
		}, true)
	}
	r.storeStates = &storeStates
	return r, nil
}

// AddProcessor registers an additional per-sample consumer. requiresCopy
// must be set if the processor retains the state; the flag is OR-folded
// across all processors so at most one copy is made per sample.
func (r *Result) AddProcessor(f Processor, requiresCopy bool) {
	r.processors = append(r.processors, f)
	r.requiresCopy = r.requiresCopy || requiresCopy
}

// Add records one sample. Every registered processor runs exactly once,
// in registration order. If any processor requires an owned copy, a
// single copy of state is made and shared by all processors.
func (r *Result) Add(t float64, state *quantum.Qobj) {
	r.Times = append(r.Times, t)

	if r.requiresCopy {
		state = r.copyFn(state)
	}
	for _, p := range r.processors {
		p(t, state)
	}
}

// AddCollapse records a discrete jump on the given channel.
func (r *Result) AddCollapse(t float64, which int) {
	r.collapse = append(r.collapse, CollapseEvent{Time: t, Which: which})
}

// Collapse returns the recorded jump events in order of occurrence.
func (r *Result) Collapse() []CollapseEvent { return r.collapse }

// Keys returns the observable keys in binding order.
func (r *Result) Keys() []string {
	keys := make([]string, len(r.bounds))
	for i, b := range r.bounds {
		keys[i] = b.key
	}
	return keys
}

// Expect returns the recorded values for the given observable key, one
// per sample, or nil if the key was never bound. The returned slice is
// the recorder's own storage, not a copy.
func (r *Result) Expect(key string) []float64 {
	b, ok := r.byKey[key]
	if !ok {
		return nil
	}
	return b.values
}

// NumEOps returns the number of bound observables.
func (r *Result) NumEOps() int { return len(r.bounds) }

// StoresStates reports whether the full state history is retained.
func (r *Result) StoresStates() bool { return r.storeStates != nil && *r.storeStates }

// StoresFinalState reports whether the last state is retained.
func (r *Result) StoresFinalState() bool {
	return r.StoresStates() || r.storeFinalState
}

// String returns a human-readable summary of the trajectory.
func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<Result\n  Solver: %s\n", r.Solver)
	if len(r.Stats) > 0 {
		b.WriteString("  Solver stats:\n")
		for _, k := range sortedKeys(r.Stats) {
			fmt.Fprintf(&b, "    %s: %v\n", k, r.Stats[k])
		}
	}
	if len(r.Times) > 0 {
		fmt.Fprintf(&b, "  Time interval: [%g, %g] (%d steps)\n",
			r.Times[0], r.Times[len(r.Times)-1], len(r.Times))
	}
	fmt.Fprintf(&b, "  Number of e_ops: %d\n", len(r.bounds))
	switch {
	case len(r.States) > 0:
		b.WriteString("  States saved.\n")
	case r.FinalState != nil:
		b.WriteString("  Final state saved.\n")
	default:
		b.WriteString("  State not saved.\n")
	}
	b.WriteString(">")
	return b.String()
}
