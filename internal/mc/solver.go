// Package mc implements a minimal Monte-Carlo jump unravelling for a
// damped two-level atom. It exists to drive the CLI demo and the
// end-to-end tests; it is deliberately first-order and fixed-step.
package mc

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/perjlieb/qutip/pkg/quantum"
	"github.com/perjlieb/qutip/pkg/result"
)

// SolverName identifies this solver in trajectory metadata.
const SolverName = "mcsolve"

// Solver holds the fixed physical and numerical parameters of the
// unravelling. It is immutable and safe to share across trajectories;
// per-trajectory randomness comes from the seed passed to RunTrajectory.
type Solver struct {
	// Gamma is the decay rate of the excited state.
	Gamma float64
	// Dt is the integration step.
	Dt float64
	// Steps is the number of recorded samples (including t = 0).
	Steps int
}

// New validates the parameters and returns a Solver.
func New(gamma, dt float64, steps int) (*Solver, error) {
	if gamma < 0 {
		return nil, fmt.Errorf("decay rate must be non-negative, got %g", gamma)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %g", dt)
	}
	if steps < 2 {
		return nil, fmt.Errorf("need at least 2 steps, got %d", steps)
	}
	if gamma*dt >= 1 {
		return nil, fmt.Errorf("gamma*dt = %g too large for first-order stepping", gamma*dt)
	}
	return &Solver{Gamma: gamma, Dt: dt, Steps: steps}, nil
}

// Stats returns the solver metadata attached to each trajectory record.
func (s *Solver) Stats() map[string]any {
	return map[string]any{
		"solver":    SolverName,
		"method":    "euler",
		"gamma":     s.Gamma,
		"time_step": s.Dt,
		"num_steps": s.Steps,
	}
}

// RunTrajectory evolves one trajectory from the excited state, recording
// a sample per step and a collapse event on channel 0 for every quantum
// jump. The walk is deterministic for a given seed.
func (s *Solver) RunTrajectory(ctx context.Context, rec *result.Result, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	psi := quantum.Basis(2, 1)
	num := quantum.Num()
	lower := quantum.SigmaM()

	for i := 0; i < s.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := float64(i) * s.Dt
		rec.Add(t, psi)
		if i == s.Steps-1 {
			break
		}

		pExcited := real(quantum.Expect(num, psi))
		pJump := s.Gamma * pExcited * s.Dt
		if rng.Float64() < pJump {
			psi = lower.Mul(psi).Unit()
			rec.AddCollapse(t+s.Dt, 0)
			continue
		}

		// No-jump step under the effective non-hermitian Hamiltonian:
		// damp the excited amplitude, then renormalize.
		damped := psi.Add(num.Mul(psi).Scale(complex(-s.Gamma*s.Dt/2, 0)))
		psi = damped.Unit()
	}
	return nil
}

// Duration returns the total evolved time span.
func (s *Solver) Duration() float64 {
	return float64(s.Steps-1) * s.Dt
}
