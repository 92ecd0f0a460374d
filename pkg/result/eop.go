package result

import (
	"fmt"
	"strconv"

	"github.com/perjlieb/qutip/pkg/quantum"
)

// EOpFunc is an arbitrary recorded quantity, evaluated once per sample.
// It must not mutate the state it is given.
type EOpFunc func(t float64, state *quantum.Qobj) float64

type eopKind int

const (
	eopInvalid eopKind = iota
	eopOper
	eopEvo
	eopFunc
)

// EOpSpec describes one quantity to record at every sample: the
// expectation value of a constant operator, of a time-dependent operator,
// or the value of an arbitrary function of time and state. The zero value
// is invalid and is rejected when a recorder is built.
type EOpSpec struct {
	kind eopKind
	op   *quantum.Qobj
	evo  *quantum.Evo
	fn   EOpFunc
}

// Oper records the expectation value of a constant operator. Operators
// are assumed hermitian; the real part of the expectation value is kept.
func Oper(op *quantum.Qobj) EOpSpec {
	return EOpSpec{kind: eopOper, op: op}
}

// EvoOper records the expectation value of a time-dependent operator.
func EvoOper(e *quantum.Evo) EOpSpec {
	return EOpSpec{kind: eopEvo, evo: e}
}

// Func records the value of an arbitrary function f(t, state).
func Func(f EOpFunc) EOpSpec {
	return EOpSpec{kind: eopFunc, fn: f}
}

// EOp is one binding entry: a spec together with the key under which its
// values are recorded. Keys must be unique within one recorder and the
// key set must be identical across all trajectories fed to one aggregator.
type EOp struct {
	Key  string
	Spec EOpSpec
}

// Indexed assigns positional keys "0".."n-1" to the given specs.
func Indexed(specs ...EOpSpec) []EOp {
	eops := make([]EOp, len(specs))
	for i, s := range specs {
		eops[i] = EOp{Key: strconv.Itoa(i), Spec: s}
	}
	return eops
}

// Single binds one spec under the default key "0". Convenience form for
// recording a single observable.
func Single(spec EOpSpec) []EOp {
	return Indexed(spec)
}

// boundEOp is a spec resolved into an evaluator plus its value sink. It
// is owned by exactly one Result.
type boundEOp struct {
	key    string
	eval   EOpFunc
	values []float64
}

// store evaluates the observable and appends it to the sink. Registered
// as a state processor on the owning Result.
func (b *boundEOp) store(t float64, state *quantum.Qobj) {
	b.values = append(b.values, b.eval(t, state))
}

// resolve turns a spec into its evaluator. Invalid specs fail here, at
// bind time, so a misconfigured recorder can never start sampling.
func (s EOpSpec) resolve() (EOpFunc, error) {
	switch s.kind {
	case eopOper:
		op := s.op
		return func(t float64, state *quantum.Qobj) float64 {
			return real(quantum.Expect(op, state))
		}, nil
	case eopEvo:
		evo := s.evo
		return func(t float64, state *quantum.Qobj) float64 {
			return real(evo.Expect(t, state))
		}, nil
	case eopFunc:
		return s.fn, nil
	default:
		return nil, ErrUnsupportedEOp
	}
}

// bind resolves all specs into bound observables with unique keys,
// preserving the given order.
func bind(eops []EOp) ([]*boundEOp, error) {
	bounds := make([]*boundEOp, 0, len(eops))
	seen := make(map[string]struct{}, len(eops))
	for _, e := range eops {
		if _, ok := seen[e.Key]; ok {
			return nil, fmt.Errorf("observable %q: %w", e.Key, ErrDuplicateKey)
		}
		seen[e.Key] = struct{}{}
		eval, err := e.Spec.resolve()
		if err != nil {
			return nil, fmt.Errorf("observable %q: %w", e.Key, err)
		}
		bounds = append(bounds, &boundEOp{key: e.Key, eval: eval})
	}
	return bounds, nil
}
