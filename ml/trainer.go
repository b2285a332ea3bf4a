package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrainConfig holds the knobs of one training run. The loss is always
// mean squared error.
type TrainConfig struct {
	LearningRate float64       `json:"learning_rate"`
	Optimizer    OptimizerName `json:"optimizer"`
	Epochs       int           `json:"epochs"`
	// OnEpoch, when set, is called after every epoch with the loss of the
	// parameters that epoch started from.
	OnEpoch func(epoch int, loss float64) `json:"-"`
}

// Validate checks the config before any tensor is allocated.
func (c TrainConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if _, err := ParseOptimizer(string(c.Optimizer)); err != nil {
		return err
	}
	return nil
}

// TrainReport summarizes a finished run.
type TrainReport struct {
	Epochs    int           `json:"epochs"`
	FinalLoss float64       `json:"final_loss"`
	R2        float64       `json:"r2"`
	Duration  time.Duration `json:"duration"`
}

// Train fits model to ds with full-batch gradient descent, mutating the
// model in place. Every tensor it allocates is disposed before it returns.
func Train(ctx context.Context, engine *Engine, model Regressor, ds Dataset, cfg TrainConfig) (TrainReport, error) {
	if err := cfg.Validate(); err != nil {
		return TrainReport{}, &TrainingError{Err: err}
	}
	dsArity, err := ds.Arity()
	if err != nil {
		return TrainReport{}, &TrainingError{Err: err}
	}
	arity := model.Arity()
	if dsArity != arity {
		return TrainReport{}, &TrainingError{Err: &InvalidShapeError{Index: 0, Expected: arity, Got: dsArity}}
	}
	opt, err := NewOptimizer(cfg.Optimizer, cfg.LearningRate)
	if err != nil {
		return TrainReport{}, &TrainingError{Err: err}
	}

	start := time.Now()
	report := TrainReport{}
	err = engine.Tidy(func(s *Scope) error {
		xs := s.Matrix(ds.Inputs(), arity)
		ys := s.Column(ds.Targets())
		n := float64(len(ds.Samples))
		params := model.Parameters()
		grads := make([]float64, len(params))

		for epoch := 1; epoch <= cfg.Epochs; epoch++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var loss float64
			_ = engine.Tidy(func(es *Scope) error {
				residual := es.Sub(model.Forward(es, xs), ys)
				res := residual.Dense().RawMatrix().Data
				loss = floats.Dot(res, res) / n

				gw := es.MulT(xs, residual).Dense().RawMatrix().Data
				for j := 0; j < arity; j++ {
					grads[j] = 2 * gw[j] / n
				}
				grads[arity] = 2 * floats.Sum(res) / n
				return nil
			})

			opt.Step(params, grads)
			model.SetParameters(params)
			report.Epochs = epoch
			report.FinalLoss = loss
			if cfg.OnEpoch != nil {
				cfg.OnEpoch(epoch, loss)
			}
		}

		estimates := model.Forward(s, xs)
		report.R2 = stat.RSquaredFrom(estimates.Dense().RawMatrix().Data, ds.Targets(), nil)
		return nil
	})
	report.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return report, err
		}
		return report, &TrainingError{Err: err}
	}
	return report, nil
}
