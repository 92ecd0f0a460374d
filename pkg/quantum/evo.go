package quantum

// Coeff is a time-dependent scalar coefficient.
type Coeff func(t float64) complex128

// Evo is a time-dependent operator: a constant base operator modulated by
// a scalar coefficient, A(t) = c(t)·A. A nil coefficient means c(t) = 1.
type Evo struct {
	op    *Qobj
	coeff Coeff
}

// NewEvo wraps op with the given coefficient.
func NewEvo(op *Qobj, c Coeff) *Evo {
	if op.Kind() != Oper {
		panic("quantum: Evo requires an operator")
	}
	return &Evo{op: op, coeff: c}
}

// At returns the operator evaluated at time t.
func (e *Evo) At(t float64) *Qobj {
	if e.coeff == nil {
		return e.op
	}
	return e.op.Scale(e.coeff(t))
}

// Expect returns the expectation value of A(t) in the given state.
func (e *Evo) Expect(t float64, state *Qobj) complex128 {
	v := Expect(e.op, state)
	if e.coeff != nil {
		v *= e.coeff(t)
	}
	return v
}
