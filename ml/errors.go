package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks input rejected before the model is consulted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTraining marks a failed training attempt.
	ErrTraining = errors.New("training failed")
	// ErrTrainingPanic wraps a panic recovered from a background training.
	ErrTrainingPanic = errors.New("training panicked")
	// ErrEmptyDataset is returned when there is nothing to train on.
	ErrEmptyDataset = errors.New("dataset is empty")
)

// ValidationError describes malformed prediction input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidShapeError is returned when a sample does not fit the model width.
type InvalidShapeError struct {
	Index    int
	Expected int
	Got      int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("sample %d has %d features, model expects %d", e.Index, e.Got, e.Expected)
}

// TrainingError wraps the cause of a failed training attempt.
type TrainingError struct {
	Preset string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Preset == "" {
		return "training failed: " + e.Err.Error()
	}
	return fmt.Sprintf("training %s failed: %v", e.Preset, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

func (e *TrainingError) Is(target error) bool {
	return target == ErrTraining
}
