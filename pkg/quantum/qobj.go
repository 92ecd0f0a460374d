package quantum

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Kind discriminates the two representations a Qobj can take.
type Kind int

const (
	// Ket is a pure state, stored as an n×1 column vector.
	Ket Kind = iota
	// Oper is an operator (including density operators), stored n×n.
	Oper
)

func (k Kind) String() string {
	if k == Ket {
		return "ket"
	}
	return "oper"
}

// Qobj is a quantum object: a pure state or an operator on a finite
// Hilbert space. Values are immutable; every arithmetic method returns a
// new Qobj and never modifies its receiver or arguments.
type Qobj struct {
	kind Kind
	dim  int
	data *mat.CDense
}

// NewKet builds a pure state from its amplitudes.
func NewKet(amps []complex128) *Qobj {
	if len(amps) == 0 {
		panic("quantum: empty ket")
	}
	data := mat.NewCDense(len(amps), 1, nil)
	for i, a := range amps {
		data.Set(i, 0, a)
	}
	return &Qobj{kind: Ket, dim: len(amps), data: data}
}

// NewOper builds an n×n operator from row-major elements.
func NewOper(n int, elems []complex128) *Qobj {
	if len(elems) != n*n {
		panic(fmt.Sprintf("quantum: operator needs %d elements, got %d", n*n, len(elems)))
	}
	data := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data.Set(i, j, elems[i*n+j])
		}
	}
	return &Qobj{kind: Oper, dim: n, data: data}
}

// Basis returns the i-th computational basis state of an n-level system.
func Basis(n, i int) *Qobj {
	amps := make([]complex128, n)
	amps[i] = 1
	return NewKet(amps)
}

// Qeye returns the n×n identity operator.
func Qeye(n int) *Qobj {
	elems := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		elems[i*n+i] = 1
	}
	return NewOper(n, elems)
}

// SigmaZ returns the Pauli Z operator.
func SigmaZ() *Qobj {
	return NewOper(2, []complex128{1, 0, 0, -1})
}

// SigmaM returns the lowering operator, mapping the excited state
// Basis(2, 1) to the ground state Basis(2, 0).
func SigmaM() *Qobj {
	return NewOper(2, []complex128{0, 1, 0, 0})
}

// SigmaP returns the raising operator.
func SigmaP() *Qobj {
	return NewOper(2, []complex128{0, 0, 1, 0})
}

// Num returns the excitation-number operator SigmaP·SigmaM.
func Num() *Qobj {
	return NewOper(2, []complex128{0, 0, 0, 1})
}

// Kind reports whether q is a ket or an operator.
func (q *Qobj) Kind() Kind { return q.kind }

// Dim returns the Hilbert-space dimension.
func (q *Qobj) Dim() int { return q.dim }

// At returns the element at (i, j). Kets are addressed as column vectors,
// so j must be 0.
func (q *Qobj) At(i, j int) complex128 { return q.data.At(i, j) }

// Copy returns a deep copy of q.
func (q *Qobj) Copy() *Qobj {
	r, c := q.data.Dims()
	data := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data.Set(i, j, q.data.At(i, j))
		}
	}
	return &Qobj{kind: q.kind, dim: q.dim, data: data}
}

// Dag returns the adjoint (conjugate transpose) of q. The adjoint of a
// ket is represented as a 1×n operator row.
func (q *Qobj) Dag() *Qobj {
	r, c := q.data.Dims()
	data := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data.Set(j, i, cmplx.Conj(q.data.At(i, j)))
		}
	}
	kind := Oper
	if c == 1 && r == 1 {
		kind = q.kind
	}
	return &Qobj{kind: kind, dim: q.dim, data: data}
}

// Add returns q + other. Both values must have the same kind and dimension.
func (q *Qobj) Add(other *Qobj) *Qobj {
	if q.kind != other.kind || q.dim != other.dim {
		panic(fmt.Sprintf("quantum: cannot add %s(%d) and %s(%d)",
			q.kind, q.dim, other.kind, other.dim))
	}
	r, c := q.data.Dims()
	data := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data.Set(i, j, q.data.At(i, j)+other.data.At(i, j))
		}
	}
	return &Qobj{kind: q.kind, dim: q.dim, data: data}
}

// Scale returns c·q.
func (q *Qobj) Scale(s complex128) *Qobj {
	r, c := q.data.Dims()
	data := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data.Set(i, j, s*q.data.At(i, j))
		}
	}
	return &Qobj{kind: q.kind, dim: q.dim, data: data}
}

// Div returns q scaled by 1/n.
func (q *Qobj) Div(n float64) *Qobj {
	return q.Scale(complex(1/n, 0))
}

// Proj promotes a pure state to its density operator |ψ⟩⟨ψ|. Operators
// (already mixed form) are returned unchanged.
func (q *Qobj) Proj() *Qobj {
	if q.kind == Oper {
		return q
	}
	data := mat.NewCDense(q.dim, q.dim, nil)
	data.Mul(q.data, q.data.H())
	return &Qobj{kind: Oper, dim: q.dim, data: data}
}

// Tr returns the trace of an operator.
func (q *Qobj) Tr() complex128 {
	if q.kind != Oper {
		panic("quantum: trace of a ket")
	}
	var tr complex128
	for i := 0; i < q.dim; i++ {
		tr += q.data.At(i, i)
	}
	return tr
}

// Norm returns the l2 norm of a ket, or the Frobenius norm of an operator.
func (q *Qobj) Norm() float64 {
	r, c := q.data.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := q.data.At(i, j)
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}

// Unit returns q normalized to unit norm.
func (q *Qobj) Unit() *Qobj {
	n := q.Norm()
	if n == 0 {
		panic("quantum: cannot normalize zero vector")
	}
	return q.Scale(complex(1/n, 0))
}

// Mul returns the operator product q·other. q must be an operator; other
// may be a ket or an operator.
func (q *Qobj) Mul(other *Qobj) *Qobj {
	if q.kind != Oper {
		panic("quantum: left factor must be an operator")
	}
	if q.dim != other.dim {
		panic("quantum: dimension mismatch in product")
	}
	_, c := other.data.Dims()
	data := mat.NewCDense(q.dim, c, nil)
	data.Mul(q.data, other.data)
	return &Qobj{kind: other.kind, dim: q.dim, data: data}
}

// EqualApprox reports whether q and other agree elementwise within tol.
func (q *Qobj) EqualApprox(other *Qobj, tol float64) bool {
	if q.kind != other.kind || q.dim != other.dim {
		return false
	}
	r, c := q.data.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if cmplx.Abs(q.data.At(i, j)-other.data.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// Expect returns the expectation value of op in the given state:
// ⟨ψ|A|ψ⟩ for kets and Tr(Aρ) for density operators.
func Expect(op, state *Qobj) complex128 {
	if op.kind != Oper {
		panic("quantum: observable must be an operator")
	}
	if op.dim != state.dim {
		panic("quantum: dimension mismatch in expectation value")
	}
	if state.kind == Ket {
		apsi := op.Mul(state)
		var v complex128
		for i := 0; i < state.dim; i++ {
			v += cmplx.Conj(state.data.At(i, 0)) * apsi.data.At(i, 0)
		}
		return v
	}
	return op.Mul(state).Tr()
}
