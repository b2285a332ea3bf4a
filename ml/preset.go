package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// Preset bundles a dataset provider with the model width and training
// settings used for it.
type Preset struct {
	Name      string
	Arity     int
	Seed      int64
	Precision int
	Train     TrainConfig
	XLabel    string
	YLabel    string
	// Dataset builds the training data; seed feeds any injected noise.
	Dataset func(seed int64) Dataset
}

const (
	PresetLinear = "linear"
	PresetSalary = "salary"
)

// DefaultPresets returns the single-feature synthetic preset and the
// two-feature salary preset.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		PresetLinear: {
			Name:      PresetLinear,
			Arity:     1,
			Seed:      42,
			Precision: 3,
			Train:     TrainConfig{Optimizer: OptimizerAdam, LearningRate: 0.1, Epochs: 100},
			XLabel:    "x",
			YLabel:    "y",
			Dataset: func(seed int64) Dataset {
				return SyntheticDataset(rand.New(rand.NewSource(seed)))
			},
		},
		PresetSalary: {
			Name:      PresetSalary,
			Arity:     2,
			Seed:      7,
			Precision: 2,
			Train:     TrainConfig{Optimizer: OptimizerSGD, LearningRate: 0.01, Epochs: 500},
			XLabel:    "Experience",
			YLabel:    "Salary",
			Dataset: func(int64) Dataset {
				return SalaryDataset()
			},
		},
	}
}

// LookupPreset returns a preset by name.
func LookupPreset(presets map[string]Preset, name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unsupported model preset %q", name)
	}
	return p, nil
}

// PresetNames returns the names in sorted order.
func PresetNames(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
