package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"linpredict/chart"
	"linpredict/db"
	"linpredict/logging"
	"linpredict/ml"
	"linpredict/pipeline"
)

func main() {
	presetName := flag.String("preset", ml.PresetLinear, "model preset: linear or salary")
	input := flag.String("input", "", "comma separated input values, e.g. 3,2")
	epochs := flag.Int("epochs", 0, "training epochs (0 keeps the preset value)")
	learningRate := flag.Float64("lr", 0, "learning rate (0 keeps the preset value)")
	optimizer := flag.String("optimizer", "", "adam or sgd (empty keeps the preset value)")
	seed := flag.Int64("seed", 0, "dataset and weight seed (0 keeps the preset value)")
	logEvery := flag.Int("log_every", 0, "log training loss every n epochs")
	dbPath := flag.String("db", "", "optional sqlite audit log")
	timeout := flag.Duration("timeout", time.Minute, "give up after this long")
	showData := flag.Bool("show_data", false, "print the training dataset")
	flag.Parse()
	log.SetFlags(0)

	if err := logging.Setup(logging.Options{Level: "info", Debug: true}); err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logging.Sync()

	preset, err := buildPreset(*presetName, *epochs, *learningRate, *optimizer, *seed)
	if err != nil {
		log.Fatal(err)
	}

	opts := pipeline.Options{Preset: preset, Surface: chart.NewMemorySurface(), LogEvery: *logEvery}
	if *dbPath != "" {
		store, err := db.InitDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open audit log: %v", err)
		}
		defer store.Close()
		opts.Audit = store
	}
	runner := pipeline.New(opts)
	defer runner.Close()

	if *showData {
		fmt.Println(runner.Session().Dataset())
	}

	values, err := parseInput(*input, preset.Arity)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := runner.Predict(ctx, values)
	if err != nil {
		var shapeErr *ml.InvalidShapeError
		if errors.As(err, &shapeErr) {
			log.Fatalf("dataset does not fit the model: %v", err)
		}
		log.Fatalf("prediction failed: %v", err)
	}

	model, report, _ := runner.Session().Parameters()
	fmt.Printf("preset:   %s (%s, lr=%g, epochs=%d)\n", preset.Name, preset.Train.Optimizer, preset.Train.LearningRate, report.Epochs)
	for i, w := range model.Weights {
		fmt.Printf("weight %d: %.4f\n", i, w)
	}
	fmt.Printf("bias:     %.4f\n", model.Bias)
	fmt.Printf("loss:     %.4f\n", report.FinalLoss)
	fmt.Printf("r2:       %.4f\n", report.R2)
	fmt.Printf("predicted %s for %v: %s\n", runner.Session().Dataset().TargetName, values, result.Display())
}

func buildPreset(name string, epochs int, lr float64, optimizer string, seed int64) (ml.Preset, error) {
	preset, err := ml.LookupPreset(ml.DefaultPresets(), name)
	if err != nil {
		return ml.Preset{}, err
	}
	if epochs > 0 {
		preset.Train.Epochs = epochs
	}
	if lr > 0 {
		preset.Train.LearningRate = lr
	}
	if optimizer != "" {
		opt, err := ml.ParseOptimizer(optimizer)
		if err != nil {
			return ml.Preset{}, err
		}
		preset.Train.Optimizer = opt
	}
	if seed != 0 {
		preset.Seed = seed
	}
	return preset, nil
}

// parseInput reads comma separated floats. An empty string yields arity
// zeros so the command still shows the learned parameters.
func parseInput(s string, arity int) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return make([]float64, arity), nil
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}
