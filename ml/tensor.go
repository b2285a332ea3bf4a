package ml

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Engine allocates transient tensors and counts the live ones.
type Engine struct {
	live atomic.Int64
}

// NewEngine creates an engine with no live tensors.
func NewEngine() *Engine {
	return &Engine{}
}

// Live returns the number of tensors allocated and not yet disposed.
func (e *Engine) Live() int64 {
	return e.live.Load()
}

// Tidy runs fn with a fresh scope and disposes every tensor allocated in it
// once fn returns, panics included.
func (e *Engine) Tidy(fn func(s *Scope) error) error {
	s := &Scope{engine: e}
	defer s.release()
	return fn(s)
}

// Tensor is a dense matrix owned by the scope that created it.
type Tensor struct {
	once   sync.Once
	data   *mat.Dense
	engine *Engine
}

// Dense returns the backing matrix, nil after Dispose.
func (t *Tensor) Dense() *mat.Dense {
	return t.data
}

// Dims returns rows and columns.
func (t *Tensor) Dims() (int, int) {
	if t.data == nil {
		return 0, 0
	}
	return t.data.Dims()
}

// At returns a single element.
func (t *Tensor) At(i, j int) float64 {
	return t.data.At(i, j)
}

// Dispose releases the tensor. Calling it more than once is a no-op.
func (t *Tensor) Dispose() {
	t.once.Do(func() {
		t.data = nil
		t.engine.live.Add(-1)
	})
}

// Scope tracks tensors created during one Tidy call.
type Scope struct {
	engine  *Engine
	tensors []*Tensor
}

func (s *Scope) track(d *mat.Dense) *Tensor {
	t := &Tensor{data: d, engine: s.engine}
	s.engine.live.Add(1)
	s.tensors = append(s.tensors, t)
	return t
}

func (s *Scope) release() {
	for i := len(s.tensors) - 1; i >= 0; i-- {
		s.tensors[i].Dispose()
	}
	s.tensors = nil
}

// Zeros allocates an r×c tensor of zeros.
func (s *Scope) Zeros(r, c int) *Tensor {
	return s.track(mat.NewDense(r, c, nil))
}

// Matrix builds an r×c tensor from row-major data.
func (s *Scope) Matrix(rows [][]float64, c int) *Tensor {
	data := make([]float64, 0, len(rows)*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	return s.track(mat.NewDense(len(rows), c, data))
}

// Column builds an n×1 tensor.
func (s *Scope) Column(values []float64) *Tensor {
	data := append([]float64(nil), values...)
	return s.track(mat.NewDense(len(values), 1, data))
}

// Mul returns a·b.
func (s *Scope) Mul(a, b *Tensor) *Tensor {
	r, _ := a.Dims()
	_, c := b.Dims()
	out := mat.NewDense(r, c, nil)
	out.Mul(a.data, b.data)
	return s.track(out)
}

// MulT returns aᵀ·b.
func (s *Scope) MulT(a, b *Tensor) *Tensor {
	_, r := a.Dims()
	_, c := b.Dims()
	out := mat.NewDense(r, c, nil)
	out.Mul(a.data.T(), b.data)
	return s.track(out)
}

// Sub returns a-b.
func (s *Scope) Sub(a, b *Tensor) *Tensor {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Sub(a.data, b.data)
	return s.track(out)
}

// AddScalar returns a with v added to every element.
func (s *Scope) AddScalar(a *Tensor, v float64) *Tensor {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, x float64) float64 { return x + v }, a.data)
	return s.track(out)
}
