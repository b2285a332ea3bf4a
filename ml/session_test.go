package ml

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salarySession(t *testing.T, observer TrainObserver) *Session {
	t.Helper()
	preset, err := LookupPreset(DefaultPresets(), PresetSalary)
	require.NoError(t, err)
	return NewSession(preset, observer)
}

func TestPredictWrongArity(t *testing.T) {
	s := salarySession(t, nil)
	before := s.model.Parameters()

	_, err := s.Predict(context.Background(), []float64{3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "input", verr.Field)

	assert.Equal(t, StateUninitialized, s.State())
	assert.Zero(t, s.Trainings())
	assert.Equal(t, before, s.model.Parameters())
}

func TestPredictNonFinite(t *testing.T) {
	s := salarySession(t, nil)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := s.Predict(context.Background(), []float64{1, v})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Zero(t, s.Trainings())
}

func TestPredictTrainsOnce(t *testing.T) {
	s := salarySession(t, nil)
	first, err := s.Predict(context.Background(), []float64{3, 2})
	require.NoError(t, err)
	second, err := s.Predict(context.Background(), []float64{3, 2})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, s.Trainings())
	assert.Equal(t, StateReady, s.State())
	assert.Zero(t, s.Engine().Live())

	assert.Greater(t, first.Value, 0.0)
	assert.Less(t, first.Value, 12.0)
	assert.Equal(t, []float64{3, 2}, first.Input)
	assert.Regexp(t, `^-?\d+\.\d{2}$`, first.Display())
}

func TestPredictConcurrentFirstUse(t *testing.T) {
	s := salarySession(t, nil)
	const callers = 8
	results := make([]PredictionResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Predict(context.Background(), []float64{4, 3})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Value, results[i].Value)
	}
	assert.EqualValues(t, 1, s.Trainings())
	assert.Zero(t, s.Engine().Live())
}

func TestTrainingFailureAllowsRetry(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []error
	)
	preset := Preset{
		Name:      "broken",
		Arity:     2,
		Precision: 2,
		Train:     TrainConfig{Optimizer: OptimizerSGD, LearningRate: 0.01, Epochs: 10},
		Dataset: func(int64) Dataset {
			return Dataset{Samples: []Sample{{Input: []float64{1}, Target: 1}}}
		},
	}
	s := NewSession(preset, func(name string, report TrainReport, model LinearModel, err error) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, err)
	})

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := s.Predict(context.Background(), []float64{1, 2})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTraining)
		var shapeErr *InvalidShapeError
		assert.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, StateUninitialized, s.State())
		assert.EqualValues(t, attempt, s.Trainings())
	}
	assert.Zero(t, s.Engine().Live())

	_, _, ok := s.Parameters()
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, observed, 2)
}

func TestTrainingPanicReleasesWaiters(t *testing.T) {
	preset, err := LookupPreset(DefaultPresets(), PresetLinear)
	require.NoError(t, err)
	preset.Train.OnEpoch = func(epoch int, loss float64) {
		if epoch == 3 {
			panic("epoch hook failed")
		}
	}
	var observed error
	s := NewSession(preset, func(name string, report TrainReport, model LinearModel, err error) {
		observed = err
	})
	before := s.model.Parameters()

	_, err = s.Predict(context.Background(), []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTraining)
	assert.ErrorIs(t, err, ErrTrainingPanic)
	assert.Contains(t, err.Error(), "epoch hook failed")
	assert.Equal(t, StateUninitialized, s.State())
	assert.Equal(t, before, s.model.Parameters())
	assert.Zero(t, s.Engine().Live())
	assert.ErrorIs(t, observed, ErrTrainingPanic)
}

func TestObserverPanicKeepsModel(t *testing.T) {
	s := salarySession(t, func(name string, report TrainReport, model LinearModel, err error) {
		panic("observer failed")
	})

	result, err := s.Predict(context.Background(), []float64{3, 2})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(result.Value))
	assert.Equal(t, StateReady, s.State())
}

func TestSessionParameters(t *testing.T) {
	var reported LinearModel
	done := make(chan struct{})
	preset, err := LookupPreset(DefaultPresets(), PresetLinear)
	require.NoError(t, err)
	s := NewSession(preset, func(name string, report TrainReport, model LinearModel, err error) {
		assert.Equal(t, PresetLinear, name)
		assert.NoError(t, err)
		reported = model
		close(done)
	})

	_, _, ok := s.Parameters()
	assert.False(t, ok)

	require.NoError(t, s.EnsureModel(context.Background()))
	<-done
	model, report, ok := s.Parameters()
	require.True(t, ok)
	assert.Equal(t, 100, report.Epochs)
	assert.Equal(t, reported.Weights, model.Weights)
	assert.InDelta(t, 2.0, model.Weights[0], 0.3)
}

func TestLookupPreset(t *testing.T) {
	presets := DefaultPresets()
	assert.Equal(t, []string{PresetLinear, PresetSalary}, PresetNames(presets))
	_, err := LookupPreset(presets, "cubic")
	assert.Error(t, err)
}

func TestPredictionDisplay(t *testing.T) {
	r := PredictionResult{Value: 5.12345, Precision: 2}
	assert.Equal(t, "5.12", r.Display())
	r.Precision = 3
	assert.Equal(t, "5.123", r.Display())
}
