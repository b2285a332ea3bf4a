package ml

import (
	"fmt"
	"math/rand"
)

// Sample is one training row.
type Sample struct {
	Input  []float64 `json:"input"`
	Target float64   `json:"target"`
}

// Dataset is an ordered set of samples sharing one input arity.
type Dataset struct {
	Samples      []Sample `json:"samples"`
	FeatureNames []string `json:"feature_names"`
	TargetName   string   `json:"target_name"`
}

// Arity returns the shared input width, or an InvalidShapeError for the
// first sample that disagrees with the first one.
func (d Dataset) Arity() (int, error) {
	if len(d.Samples) == 0 {
		return 0, ErrEmptyDataset
	}
	arity := len(d.Samples[0].Input)
	for i, s := range d.Samples[1:] {
		if len(s.Input) != arity {
			return 0, &InvalidShapeError{Index: i + 1, Expected: arity, Got: len(s.Input)}
		}
	}
	return arity, nil
}

// Inputs returns the input rows.
func (d Dataset) Inputs() [][]float64 {
	rows := make([][]float64, len(d.Samples))
	for i, s := range d.Samples {
		rows[i] = s.Input
	}
	return rows
}

// Targets returns the target column.
func (d Dataset) Targets() []float64 {
	ys := make([]float64, len(d.Samples))
	for i, s := range d.Samples {
		ys[i] = s.Target
	}
	return ys
}

const (
	syntheticStart = -10.0
	syntheticEnd   = 10.0
	syntheticStep  = 0.5
)

// SyntheticDataset generates y = 2x + 1 + U[0, 2) for x in [-10, 10] step 0.5.
func SyntheticDataset(rng *rand.Rand) Dataset {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	n := int((syntheticEnd-syntheticStart)/syntheticStep) + 1
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		x := syntheticStart + float64(i)*syntheticStep
		samples = append(samples, Sample{
			Input:  []float64{x},
			Target: 2*x + 1 + rng.Float64()*2,
		})
	}
	return Dataset{Samples: samples, FeatureNames: []string{"x"}, TargetName: "y"}
}

// SalaryDataset returns the fixed experience/role level → salary table.
func SalaryDataset() Dataset {
	rows := [][3]float64{
		{1, 1, 2.5},
		{1, 2, 3},
		{2, 1, 3.2},
		{2, 2, 4},
		{3, 2, 5},
		{3, 3, 6.5},
		{4, 2, 5.5},
		{4, 3, 7},
		{5, 3, 8},
		{6, 3, 8.5},
		{7, 4, 10},
		{8, 4, 11},
	}
	samples := make([]Sample, len(rows))
	for i, r := range rows {
		samples[i] = Sample{Input: []float64{r[0], r[1]}, Target: r[2]}
	}
	return Dataset{
		Samples:      samples,
		FeatureNames: []string{"Experience", "Role Level"},
		TargetName:   "Salary",
	}
}

// String summarizes the dataset for logs.
func (d Dataset) String() string {
	return fmt.Sprintf("dataset(samples=%d features=%v target=%s)", len(d.Samples), d.FeatureNames, d.TargetName)
}
