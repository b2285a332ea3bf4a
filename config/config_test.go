package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linpredict/ml"
)

const sample = `
http:
  port: 9090
  allowed_origins: ["http://localhost:3000"]
log:
  level: debug
database:
  path: /tmp/audit.db
sentiment:
  base_url: http://sentiment:5000
  timeout: 3s
  serve: true
models:
  salary:
    epochs: 800
    log_every: 50
  linear:
    optimizer: SGD
    learning_rate: 0.05
    precision: 4
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Http.Port)
	assert.Equal(t, 15*time.Second, c.Http.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, c.Http.AllowedOrigins)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 3*time.Second, c.Sentiment.Timeout)
	assert.Equal(t, 1024, c.Sentiment.CacheSize)
	assert.True(t, c.Sentiment.Serve)

	presets := c.Presets()
	salary := presets[ml.PresetSalary]
	assert.Equal(t, 800, salary.Train.Epochs)
	assert.Equal(t, ml.OptimizerSGD, salary.Train.Optimizer)
	assert.Equal(t, 0.01, salary.Train.LearningRate)

	linear := presets[ml.PresetLinear]
	assert.Equal(t, ml.OptimizerSGD, linear.Train.Optimizer)
	assert.Equal(t, 0.05, linear.Train.LearningRate)
	assert.Equal(t, 100, linear.Train.Epochs)
	assert.Equal(t, 4, linear.Precision)

	assert.Equal(t, 50, c.LogEvery(ml.PresetSalary))
	assert.Equal(t, DefaultLogEvery, c.LogEvery(ml.PresetLinear))
}

func TestZeroModelOverrides(t *testing.T) {
	c, err := Parse([]byte("models: {linear: {log_every: 0, precision: 0}, salary: {epochs: 5}}"))
	require.NoError(t, err)

	assert.Zero(t, c.LogEvery(ml.PresetLinear))
	assert.Equal(t, DefaultLogEvery, c.LogEvery(ml.PresetSalary))

	presets := c.Presets()
	assert.Zero(t, presets[ml.PresetLinear].Precision)
	assert.Equal(t, ml.DefaultPresets()[ml.PresetSalary].Precision, presets[ml.PresetSalary].Precision)
}

func TestDefaults(t *testing.T) {
	c, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Http.Port)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "linpredict.db", c.Database.Path)
	assert.Equal(t, Default(), c)
}

func TestValidate(t *testing.T) {
	cases := []string{
		"http: {port: 70000}",
		"log: {level: loud}",
		"models: {quadratic: {epochs: 3}}",
		"models: {linear: {optimizer: rmsprop}}",
		"models: {linear: {epochs: -1}}",
		"models: {linear: {log_every: -5}}",
		"models: {salary: {precision: 11}}",
		"unknown_section: true",
	}
	for _, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestApplyOverrides(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyOverrides(Overrides{Port: 7000, LogLevel: "WARN", ServeAnalyzer: true}))
	assert.Equal(t, 7000, c.Http.Port)
	assert.Equal(t, "warn", c.Log.Level)
	assert.True(t, c.Sentiment.Serve)
	assert.Equal(t, "linpredict.db", c.Database.Path)

	assert.Error(t, c.ApplyOverrides(Overrides{LogLevel: "chatty"}))
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: info}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log: {level: bogus}\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log: {level: error}\n"), 0o644))

	select {
	case c := <-changes:
		assert.Equal(t, "error", c.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
