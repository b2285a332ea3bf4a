package ml

// Regressor is a trainable model mapping an input vector to a scalar.
type Regressor interface {
	Arity() int
	Forward(s *Scope, x *Tensor) *Tensor
	Parameters() []float64
	SetParameters(params []float64)
	Reset()
}
