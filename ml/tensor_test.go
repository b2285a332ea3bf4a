package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTidyReleasesOnReturn(t *testing.T) {
	e := NewEngine()
	err := e.Tidy(func(s *Scope) error {
		a := s.Matrix([][]float64{{1, 2}, {3, 4}}, 2)
		b := s.Column([]float64{1, 1})
		c := s.Mul(a, b)
		assert.Equal(t, 3.0, c.At(0, 0))
		assert.Equal(t, 7.0, c.At(1, 0))
		assert.EqualValues(t, 3, e.Live())
		return nil
	})
	assert.NoError(t, err)
	assert.Zero(t, e.Live())
}

func TestTidyReleasesOnError(t *testing.T) {
	e := NewEngine()
	boom := errors.New("boom")
	err := e.Tidy(func(s *Scope) error {
		s.Zeros(3, 3)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, e.Live())
}

func TestTidyReleasesOnPanic(t *testing.T) {
	e := NewEngine()
	assert.Panics(t, func() {
		_ = e.Tidy(func(s *Scope) error {
			s.Zeros(2, 2)
			panic("boom")
		})
	})
	assert.Zero(t, e.Live())
}

func TestDisposeIdempotent(t *testing.T) {
	e := NewEngine()
	_ = e.Tidy(func(s *Scope) error {
		x := s.Column([]float64{1})
		x.Dispose()
		x.Dispose()
		assert.Zero(t, e.Live())
		assert.Nil(t, x.Dense())
		return nil
	})
	assert.Zero(t, e.Live())
}

func TestScopeOps(t *testing.T) {
	e := NewEngine()
	_ = e.Tidy(func(s *Scope) error {
		a := s.Matrix([][]float64{{1}, {2}, {3}}, 1)
		b := s.Column([]float64{1, 1, 1})
		d := s.Sub(a, b)
		assert.Equal(t, 2.0, d.At(2, 0))
		p := s.AddScalar(a, 0.5)
		assert.Equal(t, 1.5, p.At(0, 0))
		g := s.MulT(a, b)
		r, c := g.Dims()
		assert.Equal(t, 1, r)
		assert.Equal(t, 1, c)
		assert.Equal(t, 6.0, g.At(0, 0))
		return nil
	})
	assert.Zero(t, e.Live())
}
