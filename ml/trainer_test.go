package ml

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainLinearAdam(t *testing.T) {
	e := NewEngine()
	ds := SyntheticDataset(rand.New(rand.NewSource(3)))
	model := NewLinearModel(1, 42)

	var losses []float64
	report, err := Train(context.Background(), e, model, ds, TrainConfig{
		Optimizer:    OptimizerAdam,
		LearningRate: 0.1,
		Epochs:       100,
		OnEpoch: func(epoch int, loss float64) {
			losses = append(losses, loss)
		},
	})
	require.NoError(t, err)
	require.Len(t, losses, 100)
	assert.Equal(t, 100, report.Epochs)
	assert.Less(t, report.FinalLoss, losses[0])
	assert.InDelta(t, 2.0, model.Weights[0], 0.3)
	assert.InDelta(t, 2.0, model.Bias, 0.6)
	assert.Greater(t, report.R2, 0.9)
	assert.Zero(t, e.Live())
}

func TestTrainSalarySGD(t *testing.T) {
	e := NewEngine()
	model := NewLinearModel(2, 7)
	var first float64
	report, err := Train(context.Background(), e, model, SalaryDataset(), TrainConfig{
		Optimizer:    OptimizerSGD,
		LearningRate: 0.01,
		Epochs:       500,
		OnEpoch: func(epoch int, loss float64) {
			if epoch == 1 {
				first = loss
			}
		},
	})
	require.NoError(t, err)
	assert.Less(t, report.FinalLoss, first/2)

	v := model.Eval([]float64{3, 2})
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 12.0)
	assert.Zero(t, e.Live())
}

func TestTrainShapeMismatch(t *testing.T) {
	e := NewEngine()
	model := NewLinearModel(1, 1)
	before := model.Parameters()

	_, err := Train(context.Background(), e, model, SalaryDataset(), TrainConfig{
		Optimizer: OptimizerSGD, LearningRate: 0.01, Epochs: 10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTraining)
	var shapeErr *InvalidShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 0, shapeErr.Index)
	assert.Equal(t, 1, shapeErr.Expected)
	assert.Equal(t, 2, shapeErr.Got)
	assert.Equal(t, before, model.Parameters())
	assert.Zero(t, e.Live())
}

func TestTrainRaggedDataset(t *testing.T) {
	e := NewEngine()
	model := NewLinearModel(1, 1)
	ds := Dataset{Samples: []Sample{
		{Input: []float64{1}, Target: 1},
		{Input: []float64{2}, Target: 2},
		{Input: []float64{3, 4}, Target: 3},
	}}

	_, err := Train(context.Background(), e, model, ds, TrainConfig{
		Optimizer: OptimizerSGD, LearningRate: 0.01, Epochs: 10,
	})
	assert.ErrorIs(t, err, ErrTraining)
	var shapeErr *InvalidShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 2, shapeErr.Index)
	assert.Equal(t, 1, shapeErr.Expected)
	assert.Equal(t, 2, shapeErr.Got)
	assert.Zero(t, e.Live())
}

func TestTrainConfigValidate(t *testing.T) {
	e := NewEngine()
	model := NewLinearModel(2, 1)
	cases := []TrainConfig{
		{Optimizer: OptimizerSGD, LearningRate: 0, Epochs: 1},
		{Optimizer: OptimizerSGD, LearningRate: 0.1, Epochs: 0},
		{Optimizer: "rmsprop", LearningRate: 0.1, Epochs: 1},
	}
	for _, cfg := range cases {
		_, err := Train(context.Background(), e, model, SalaryDataset(), cfg)
		assert.ErrorIs(t, err, ErrTraining)
	}
	_, err := Train(context.Background(), e, model, Dataset{}, TrainConfig{Optimizer: OptimizerSGD, LearningRate: 0.1, Epochs: 1})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Zero(t, e.Live())
}

func TestTrainCanceled(t *testing.T) {
	e := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	model := NewLinearModel(2, 1)
	_, err := Train(ctx, e, model, SalaryDataset(), TrainConfig{
		Optimizer:    OptimizerSGD,
		LearningRate: 0.01,
		Epochs:       500,
		OnEpoch: func(epoch int, loss float64) {
			if epoch == 5 {
				cancel()
			}
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.Live())
}

func TestParseOptimizer(t *testing.T) {
	name, err := ParseOptimizer(" Adam ")
	require.NoError(t, err)
	assert.Equal(t, OptimizerAdam, name)
	_, err = ParseOptimizer("momentum")
	assert.Error(t, err)
}

func TestSGDStep(t *testing.T) {
	params := []float64{1, 2}
	NewSGD(0.5).Step(params, []float64{2, -2})
	assert.Equal(t, []float64{0, 3}, params)
}

func TestAdamFirstStep(t *testing.T) {
	params := []float64{0}
	NewAdam(0.1).Step(params, []float64{4})
	// the first bias-corrected Adam step moves by alpha in the gradient's sign
	assert.InDelta(t, -0.1, params[0], 1e-6)
}
