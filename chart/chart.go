// Package chart renders a training set and one prediction as a scatter plot
// on a Surface.
package chart

import (
	"errors"
	"sync"
	"time"

	"linpredict/ml"
)

// PlotType names the kind of plot a document describes.
type PlotType string

const RegressionScatter PlotType = "regression_scatter"

// Point is a single plotted point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style controls marker appearance.
type Style struct {
	Color       string `json:"color"`
	PointRadius int    `json:"point_radius"`
}

// Series is one set of points drawn with one style.
type Series struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Data  []Point `json:"data"`
	Style Style   `json:"style"`
}

// Config holds axis labels and layout flags.
type Config struct {
	XAxisLabel string `json:"x_axis_label"`
	YAxisLabel string `json:"y_axis_label"`
	ShowLegend bool   `json:"show_legend"`
	ShowGrid   bool   `json:"show_grid"`
}

// Plot is the document handed to a surface.
type Plot struct {
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Series    []Series  `json:"series"`
	Config    Config    `json:"config"`
}

// Handle identifies a live chart on a surface.
type Handle string

// Surface is the drawing capability the renderer needs.
type Surface interface {
	Create(plot Plot) (Handle, error)
	Destroy(h Handle)
}

const (
	trainingColor   = "rgba(54, 162, 235, 0.8)"
	predictionColor = "rgba(255, 99, 132, 1)"
)

// Renderer owns the single chart bound to one surface.
type Renderer struct {
	surface Surface
	title   string
	xLabel  string
	yLabel  string

	mu     sync.Mutex
	handle Handle
}

// NewRenderer creates a renderer with fixed axis labels.
func NewRenderer(surface Surface, title, xLabel, yLabel string) *Renderer {
	return &Renderer{surface: surface, title: title, xLabel: xLabel, yLabel: yLabel}
}

// Handle returns the live chart handle, empty when none is displayed.
func (r *Renderer) Handle() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Teardown destroys the current chart. It is a no-op when none is displayed.
func (r *Renderer) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown()
}

func (r *Renderer) teardown() {
	if r.handle == "" {
		return
	}
	r.surface.Destroy(r.handle)
	r.handle = ""
}

// Draw replaces any displayed chart with the dataset and the prediction.
// The first input feature is plotted against the target.
func (r *Renderer) Draw(ds ml.Dataset, prediction ml.PredictionResult) error {
	if len(prediction.Input) == 0 {
		return errors.New("chart: prediction has no input")
	}
	plot := r.Plot(ds, prediction)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardown()
	h, err := r.surface.Create(plot)
	if err != nil {
		return err
	}
	r.handle = h
	return nil
}

// Plot builds the document Draw would hand to the surface.
func (r *Renderer) Plot(ds ml.Dataset, prediction ml.PredictionResult) Plot {
	training := make([]Point, 0, len(ds.Samples))
	for _, s := range ds.Samples {
		if len(s.Input) == 0 {
			continue
		}
		training = append(training, Point{X: s.Input[0], Y: s.Target})
	}
	return Plot{
		PlotType:  RegressionScatter,
		Title:     r.title,
		Timestamp: time.Now(),
		Series: []Series{
			{
				Name:  "Training Data",
				Type:  "scatter",
				Data:  training,
				Style: Style{Color: trainingColor, PointRadius: 4},
			},
			{
				Name:  "Prediction",
				Type:  "scatter",
				Data:  []Point{{X: prediction.Input[0], Y: prediction.Value}},
				Style: Style{Color: predictionColor, PointRadius: 8},
			},
		},
		Config: Config{
			XAxisLabel: r.xLabel,
			YAxisLabel: r.yLabel,
			ShowLegend: true,
			ShowGrid:   true,
		},
	}
}
