package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linpredict/ml"
)

func TestParseInput(t *testing.T) {
	values, err := parseInput(" 3, 2 ", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2}, values)

	values, err = parseInput("", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, values)

	_, err = parseInput("3,x", 2)
	assert.Error(t, err)
}

func TestBuildPreset(t *testing.T) {
	p, err := buildPreset(ml.PresetSalary, 50, 0.02, "ADAM", 9)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Train.Epochs)
	assert.Equal(t, 0.02, p.Train.LearningRate)
	assert.Equal(t, ml.OptimizerAdam, p.Train.Optimizer)
	assert.EqualValues(t, 9, p.Seed)

	p, err = buildPreset(ml.PresetLinear, 0, 0, "", 0)
	require.NoError(t, err)
	assert.Equal(t, ml.DefaultPresets()[ml.PresetLinear].Train, p.Train)

	_, err = buildPreset("cubic", 0, 0, "", 0)
	assert.Error(t, err)
	_, err = buildPreset(ml.PresetLinear, 0, 0, "rmsprop", 0)
	assert.Error(t, err)
}
