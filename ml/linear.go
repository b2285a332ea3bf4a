package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// LinearModel is y = W·x + b.
type LinearModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	arity int
	seed  int64
}

// NewLinearModel creates an untrained model with glorot-uniform weights
// drawn from seed and a zero bias.
func NewLinearModel(arity int, seed int64) *LinearModel {
	m := &LinearModel{arity: arity, seed: seed}
	m.Reset()
	return m
}

// Arity returns the number of input features.
func (m *LinearModel) Arity() int {
	return m.arity
}

// Reset restores the initial, untrained parameters.
func (m *LinearModel) Reset() {
	rng := rand.New(rand.NewSource(m.seed))
	limit := math.Sqrt(6 / float64(m.arity+1))
	m.Weights = make([]float64, m.arity)
	for i := range m.Weights {
		m.Weights[i] = (rng.Float64()*2 - 1) * limit
	}
	m.Bias = 0
}

// Forward computes X·W + b for an n×arity input.
func (m *LinearModel) Forward(s *Scope, x *Tensor) *Tensor {
	w := s.Column(m.Weights)
	return s.AddScalar(s.Mul(x, w), m.Bias)
}

// Parameters returns weights followed by bias.
func (m *LinearModel) Parameters() []float64 {
	params := make([]float64, 0, m.arity+1)
	params = append(params, m.Weights...)
	return append(params, m.Bias)
}

// SetParameters is the inverse of Parameters.
func (m *LinearModel) SetParameters(params []float64) {
	copy(m.Weights, params[:m.arity])
	m.Bias = params[m.arity]
}

// Eval computes W·x + b without allocating tensors.
func (m *LinearModel) Eval(x []float64) float64 {
	return floats.Dot(x, m.Weights) + m.Bias
}
