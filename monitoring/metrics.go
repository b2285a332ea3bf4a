package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TrainingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "linpredict",
		Subsystem: "model",
		Name:      "training_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"preset"})
	TrainingFinalLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "linpredict",
		Subsystem: "model",
		Name:      "training_final_loss",
	}, []string{"preset"})
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linpredict",
		Subsystem: "model",
		Name:      "predictions_total",
	}, []string{"preset", "outcome"})
	SentimentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linpredict",
		Subsystem: "sentiment",
		Name:      "requests_total",
	}, []string{"outcome"})
)

// RegisterLiveTensors exports fn as the live tensor gauge of a preset.
func RegisterLiveTensors(reg prometheus.Registerer, preset string, fn func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "linpredict",
		Subsystem:   "model",
		Name:        "live_tensors",
		ConstLabels: prometheus.Labels{"preset": preset},
	}, fn))
}

// RegisterHubClients exports the number of connected chart pages.
func RegisterHubClients(reg prometheus.Registerer, hub *Hub) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "linpredict",
		Subsystem: "chart",
		Name:      "connected_clients",
	}, func() float64 {
		return float64(hub.Stats().ConnectedClients)
	}))
}
