package ml

import (
	"fmt"
	"math"
	"strings"
)

// OptimizerName selects a gradient update rule.
type OptimizerName string

const (
	OptimizerAdam OptimizerName = "adam"
	OptimizerSGD  OptimizerName = "sgd"
)

// ParseOptimizer accepts names case-insensitively.
func ParseOptimizer(name string) (OptimizerName, error) {
	switch OptimizerName(strings.ToLower(strings.TrimSpace(name))) {
	case OptimizerAdam:
		return OptimizerAdam, nil
	case OptimizerSGD:
		return OptimizerSGD, nil
	default:
		return "", fmt.Errorf("unknown optimizer %q", name)
	}
}

// Optimizer updates params in place from grads.
type Optimizer interface {
	Step(params, grads []float64)
}

// NewOptimizer builds the named optimizer.
func NewOptimizer(name OptimizerName, lr float64) (Optimizer, error) {
	switch name {
	case OptimizerAdam:
		return NewAdam(lr), nil
	case OptimizerSGD:
		return NewSGD(lr), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

type SGD struct {
	lr float64
}

func NewSGD(lr float64) *SGD {
	return &SGD{lr: lr}
}

func (s *SGD) Step(params, grads []float64) {
	for i := range params {
		params[i] -= s.lr * grads[i]
	}
}

type Adam struct {
	alpha float64
	beta1 float64
	beta2 float64
	eps   float64
	m     []float64
	v     []float64
	t     float64
}

func NewAdam(alpha float64) *Adam {
	return &Adam{
		alpha: alpha,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
	}
}

func (a *Adam) Step(params, grads []float64) {
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	a.t++

	fix1 := 1 - math.Pow(a.beta1, a.t)
	fix2 := 1 - math.Pow(a.beta2, a.t)
	lr := a.alpha * math.Sqrt(fix2) / fix1

	for i := range params {
		g := grads[i]
		a.m[i] += (1 - a.beta1) * (g - a.m[i])
		a.v[i] += (1 - a.beta2) * (g*g - a.v[i])
		params[i] -= lr * a.m[i] / (math.Sqrt(a.v[i]) + a.eps)
	}
}
