package ml

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"linpredict/logging"
)

// State is the lifecycle tag of a session's model.
type State int

const (
	StateUninitialized State = iota
	StateTraining
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateTraining:
		return "training"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PredictionResult is a single prediction.
type PredictionResult struct {
	Input     []float64 `json:"input"`
	Value     float64   `json:"value"`
	Precision int       `json:"-"`
}

// Display rounds the value for presentation only.
func (r PredictionResult) Display() string {
	return strconv.FormatFloat(r.Value, 'f', r.Precision, 64)
}

// TrainObserver is told about every finished training attempt.
type TrainObserver func(preset string, report TrainReport, model LinearModel, err error)

type attempt struct {
	done chan struct{}
	err  error
}

// Session owns one lazily trained model, the dataset it is trained on and
// the engine its tensors come from.
type Session struct {
	preset   Preset
	engine   *Engine
	dataset  Dataset
	observer TrainObserver

	mu      sync.Mutex
	model   *LinearModel
	state   State
	pending *attempt
	report  TrainReport

	trainings atomic.Int64
}

// NewSession generates the preset's dataset and an untrained model.
func NewSession(preset Preset, observer TrainObserver) *Session {
	ds := preset.Dataset(preset.Seed)
	return &Session{
		preset:   preset,
		engine:   NewEngine(),
		dataset:  ds,
		observer: observer,
		model:    NewLinearModel(preset.Arity, preset.Seed),
	}
}

// Preset returns the session's preset.
func (s *Session) Preset() Preset {
	return s.preset
}

// Dataset returns the training data. Callers must not modify it.
func (s *Session) Dataset() Dataset {
	return s.dataset
}

// Engine exposes the tensor engine, mainly for its live count.
func (s *Session) Engine() *Engine {
	return s.engine
}

// Arity is the input width predictions must have.
func (s *Session) Arity() int {
	return s.preset.Arity
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Trainings counts training attempts started by this session.
func (s *Session) Trainings() int64 {
	return s.trainings.Load()
}

// Parameters returns a copy of the learned model and its last report; ok is
// false until training has succeeded.
func (s *Session) Parameters() (model LinearModel, report TrainReport, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return LinearModel{}, TrainReport{}, false
	}
	return s.snapshot(), s.report, true
}

func (s *Session) snapshot() LinearModel {
	return LinearModel{
		Weights: append([]float64(nil), s.model.Weights...),
		Bias:    s.model.Bias,
		arity:   s.model.arity,
		seed:    s.model.seed,
	}
}

// Validate checks input width and that every value is finite.
func (s *Session) Validate(input []float64) error {
	if len(input) != s.preset.Arity {
		return &ValidationError{
			Field:  "input",
			Reason: fmt.Sprintf("expected %d values, got %d", s.preset.Arity, len(input)),
		}
	}
	for i, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: fmt.Sprintf("input[%d]", i), Reason: "must be a finite number"}
		}
	}
	return nil
}

// EnsureModel trains the model if no trained model exists. Callers arriving
// while a training is in flight wait for it instead of starting another.
// A failed attempt leaves the session uninitialized so a later call retries.
func (s *Session) EnsureModel(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateUninitialized:
		s.pending = &attempt{done: make(chan struct{})}
		s.state = StateTraining
		s.trainings.Add(1)
		go s.train(context.WithoutCancel(ctx), s.pending)
	}
	a := s.pending
	s.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) train(ctx context.Context, a *attempt) {
	defer close(a.done)

	report, err := s.fit(ctx)
	if err != nil {
		err = &TrainingError{Preset: s.preset.Name, Err: unwrapTraining(err)}
	}

	s.mu.Lock()
	if err != nil {
		s.model.Reset()
		s.state = StateUninitialized
	} else {
		s.state = StateReady
		s.report = report
	}
	snapshot := s.snapshot()
	s.pending = nil
	a.err = err
	s.mu.Unlock()

	s.notify(report, snapshot, err)
}

// fit runs Train, turning a panic into an error so waiters are released.
func (s *Session) fit(ctx context.Context) (report TrainReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTrainingPanic, r)
		}
	}()
	return Train(ctx, s.engine, s.model, s.dataset, s.preset.Train)
}

func (s *Session) notify(report TrainReport, model LinearModel, err error) {
	if s.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Error("training observer panicked",
				zap.String("preset", s.preset.Name),
				zap.Any("panic", r))
		}
	}()
	s.observer(s.preset.Name, report, model, err)
}

func unwrapTraining(err error) error {
	if te, ok := err.(*TrainingError); ok {
		return te.Err
	}
	return err
}

// Predict validates input, trains on first use and evaluates the model.
func (s *Session) Predict(ctx context.Context, input []float64) (PredictionResult, error) {
	if err := s.Validate(input); err != nil {
		return PredictionResult{}, err
	}
	if err := s.EnsureModel(ctx); err != nil {
		return PredictionResult{}, err
	}

	var value float64
	_ = s.engine.Tidy(func(sc *Scope) error {
		x := sc.Matrix([][]float64{input}, len(input))
		value = s.model.Forward(sc, x).At(0, 0)
		return nil
	})
	return PredictionResult{
		Input:     append([]float64(nil), input...),
		Value:     value,
		Precision: s.preset.Precision,
	}, nil
}
