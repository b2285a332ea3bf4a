// Package pipeline connects a model session to the chart, the audit log and
// the metrics for one preset.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"linpredict/chart"
	"linpredict/db"
	"linpredict/logging"
	"linpredict/ml"
	"linpredict/monitoring"
)

// AuditLog stores training attempts and served predictions.
type AuditLog interface {
	SaveTrainingRun(run db.TrainingRun) error
	SavePrediction(preset string, result ml.PredictionResult) error
}

// Publisher forwards training progress to connected pages.
type Publisher interface {
	Publish(msgType string, data interface{}) error
}

// Options wires a Runner. Surface is required; the rest are optional.
type Options struct {
	Preset    ml.Preset
	Surface   chart.Surface
	Audit     AuditLog
	Publisher Publisher
	// LogEvery is the epoch interval of progress logs; 0 disables them.
	LogEvery int
}

// Progress is published every LogEvery epochs while a preset trains.
type Progress struct {
	Preset string  `json:"preset"`
	Epoch  int     `json:"epoch"`
	Epochs int     `json:"epochs"`
	Loss   float64 `json:"loss"`
}

// Stats counts requests handled by a Runner.
type Stats struct {
	Predictions   int64     `json:"predictions"`
	Failures      int64     `json:"failures"`
	DrawFailures  int64     `json:"draw_failures"`
	LastPredicted time.Time `json:"last_predicted,omitempty"`
}

// Runner serves predictions for one preset: predict, then draw, then record.
type Runner struct {
	preset    ml.Preset
	session   *ml.Session
	renderer  *chart.Renderer
	audit     AuditLog
	publisher Publisher
	logEvery  int
	logger    *zap.Logger

	statsLock sync.RWMutex
	stats     Stats
}

// New builds the session and renderer of a preset.
func New(opts Options) *Runner {
	r := &Runner{
		preset:    opts.Preset,
		audit:     opts.Audit,
		publisher: opts.Publisher,
		logEvery:  opts.LogEvery,
		logger:    logging.Logger().With(zap.String("preset", opts.Preset.Name)),
	}
	preset := opts.Preset
	preset.Train.OnEpoch = r.onEpoch
	r.session = ml.NewSession(preset, r.onTrained)
	r.renderer = chart.NewRenderer(opts.Surface, preset.Name, preset.XLabel, preset.YLabel)
	return r
}

// Preset returns the preset this runner serves.
func (r *Runner) Preset() ml.Preset {
	return r.preset
}

// Session exposes the model session.
func (r *Runner) Session() *ml.Session {
	return r.session
}

// Renderer exposes the chart renderer.
func (r *Runner) Renderer() *chart.Renderer {
	return r.renderer
}

// Stats returns a copy of the request counters.
func (r *Runner) Stats() Stats {
	r.statsLock.RLock()
	defer r.statsLock.RUnlock()
	return r.stats
}

// Predict runs one UI event. The chart is redrawn only after a successful
// prediction; a drawing failure is logged and does not fail the request.
func (r *Runner) Predict(ctx context.Context, input []float64) (ml.PredictionResult, error) {
	result, err := r.session.Predict(ctx, input)
	if err != nil {
		monitoring.PredictionsTotal.WithLabelValues(r.preset.Name, outcome(err)).Inc()
		r.statsLock.Lock()
		r.stats.Failures++
		r.statsLock.Unlock()
		return ml.PredictionResult{}, err
	}
	monitoring.PredictionsTotal.WithLabelValues(r.preset.Name, "ok").Inc()

	drawErr := r.renderer.Draw(r.session.Dataset(), result)
	if drawErr != nil {
		r.logger.Warn("draw chart", zap.Error(drawErr))
	}
	if r.audit != nil {
		if err := r.audit.SavePrediction(r.preset.Name, result); err != nil {
			r.logger.Warn("save prediction", zap.Error(err))
		}
	}

	r.statsLock.Lock()
	r.stats.Predictions++
	if drawErr != nil {
		r.stats.DrawFailures++
	}
	r.stats.LastPredicted = time.Now()
	r.statsLock.Unlock()

	r.logger.Debug("prediction served",
		zap.Float64s("input", result.Input),
		zap.String("value", result.Display()))
	return result, nil
}

// Close tears down the chart.
func (r *Runner) Close() {
	r.renderer.Teardown()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ml.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ml.ErrTraining):
		return "training_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func (r *Runner) onEpoch(epoch int, loss float64) {
	if r.logEvery <= 0 {
		return
	}
	epochs := r.preset.Train.Epochs
	if epoch%r.logEvery != 0 && epoch != epochs {
		return
	}
	r.logger.Info("training progress",
		zap.Int("epoch", epoch),
		zap.Int("epochs", epochs),
		zap.Float64("loss", loss))
	if r.publisher != nil {
		progress := Progress{Preset: r.preset.Name, Epoch: epoch, Epochs: epochs, Loss: loss}
		if err := r.publisher.Publish(monitoring.TrainingProgress, progress); err != nil {
			r.logger.Debug("publish training progress", zap.Error(err))
		}
	}
}

func (r *Runner) onTrained(preset string, report ml.TrainReport, model ml.LinearModel, err error) {
	if err != nil {
		r.logger.Error("training failed", zap.Error(err))
	} else {
		monitoring.TrainingSeconds.WithLabelValues(preset).Observe(report.Duration.Seconds())
		monitoring.TrainingFinalLoss.WithLabelValues(preset).Set(report.FinalLoss)
		r.logger.Info("model trained",
			zap.Int("epochs", report.Epochs),
			zap.Float64("final_loss", report.FinalLoss),
			zap.Float64("r2", report.R2),
			zap.Float64s("weights", model.Weights),
			zap.Float64("bias", model.Bias),
			zap.Duration("duration", report.Duration))
	}
	if r.audit != nil {
		if serr := r.audit.SaveTrainingRun(db.NewTrainingRun(r.preset, report, model, err)); serr != nil {
			r.logger.Warn("save training run", zap.Error(serr))
		}
	}
}
