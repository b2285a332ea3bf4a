// Package config loads the service settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"linpredict/logging"
	"linpredict/ml"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Debug      bool   `yaml:"debug"`
		Path       string `yaml:"path"`
		MaxSize    int    `yaml:"max_size"`
		MaxAge     int    `yaml:"max_age"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Sentiment SentimentConfig         `yaml:"sentiment"`
	Models    map[string]ModelOverride `yaml:"models"`
}

// SentimentConfig controls the /analyze client and the hosted backend.
type SentimentConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	// Serve mounts the lexicon backend on POST /analyze.
	Serve bool `yaml:"serve"`
}

// ModelOverride replaces preset settings; zero fields keep the preset value.
// LogEvery and Precision are pointers because 0 is a meaningful setting:
// log_every: 0 disables progress logs and precision: 0 rounds to integers.
type ModelOverride struct {
	LearningRate float64 `yaml:"learning_rate"`
	Optimizer    string  `yaml:"optimizer"`
	Epochs       int     `yaml:"epochs"`
	Seed         int64   `yaml:"seed"`
	LogEvery     *int    `yaml:"log_every"`
	Precision    *int    `yaml:"precision"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Http.ReadTimeout == 0 {
		c.Http.ReadTimeout = 15 * time.Second
	}
	if c.Http.WriteTimeout == 0 {
		c.Http.WriteTimeout = 30 * time.Second
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "linpredict.db"
	}
	if c.Sentiment.BaseURL == "" {
		c.Sentiment.BaseURL = "http://127.0.0.1:5000"
	}
	if c.Sentiment.Timeout == 0 {
		c.Sentiment.Timeout = 10 * time.Second
	}
	if c.Sentiment.CacheSize == 0 {
		c.Sentiment.CacheSize = 1024
	}
	if c.Models == nil {
		c.Models = make(map[string]ModelOverride)
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Sentiment.Timeout < 0 {
		errs = append(errs, errors.New("sentiment.timeout must not be negative"))
	}
	if c.Sentiment.CacheSize < 0 {
		errs = append(errs, errors.New("sentiment.cache_size must not be negative"))
	}
	presets := ml.DefaultPresets()
	for name, o := range c.Models {
		if _, ok := presets[name]; !ok {
			errs = append(errs, fmt.Errorf("models.%s: unknown preset", name))
			continue
		}
		if o.LearningRate < 0 {
			errs = append(errs, fmt.Errorf("models.%s.learning_rate must be positive", name))
		}
		if o.Epochs < 0 {
			errs = append(errs, fmt.Errorf("models.%s.epochs must be positive", name))
		}
		if o.Optimizer != "" {
			if _, err := ml.ParseOptimizer(o.Optimizer); err != nil {
				errs = append(errs, fmt.Errorf("models.%s.optimizer: %w", name, err))
			}
		}
		if o.LogEvery != nil && *o.LogEvery < 0 {
			errs = append(errs, fmt.Errorf("models.%s.log_every must not be negative", name))
		}
		if o.Precision != nil && (*o.Precision < 0 || *o.Precision > 10) {
			errs = append(errs, fmt.Errorf("models.%s.precision must be within 0..10", name))
		}
	}
	return errors.Join(errs...)
}

// LoggingOptions converts the log section for logging.Setup.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Debug:      c.Log.Debug,
		Path:       c.Log.Path,
		MaxSize:    c.Log.MaxSize,
		MaxAge:     c.Log.MaxAge,
		MaxBackups: c.Log.MaxBackups,
	}
}

// DefaultLogEvery is used when a preset has no log_every setting.
const DefaultLogEvery = 10

// Presets returns the built-in presets with the models overrides applied.
func (c *Config) Presets() map[string]ml.Preset {
	presets := ml.DefaultPresets()
	for name, o := range c.Models {
		p, ok := presets[name]
		if !ok {
			continue
		}
		if o.LearningRate > 0 {
			p.Train.LearningRate = o.LearningRate
		}
		if o.Optimizer != "" {
			if opt, err := ml.ParseOptimizer(o.Optimizer); err == nil {
				p.Train.Optimizer = opt
			}
		}
		if o.Epochs > 0 {
			p.Train.Epochs = o.Epochs
		}
		if o.Seed != 0 {
			p.Seed = o.Seed
		}
		if o.Precision != nil {
			p.Precision = *o.Precision
		}
		presets[name] = p
	}
	return presets
}

// LogEvery returns the progress logging interval of a preset; 0 means
// progress is not logged.
func (c *Config) LogEvery(preset string) int {
	if o, ok := c.Models[preset]; ok && o.LogEvery != nil {
		return *o.LogEvery
	}
	return DefaultLogEvery
}

// Overrides are command-line values; zero values leave the file untouched.
type Overrides struct {
	Port          int
	LogLevel      string
	DatabasePath  string
	SentimentURL  string
	ServeAnalyzer bool
}

// ApplyOverrides copies non-zero flag values over the config.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.Port != 0 {
		c.Http.Port = o.Port
	}
	if o.LogLevel != "" {
		c.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.DatabasePath != "" {
		c.Database.Path = o.DatabasePath
	}
	if o.SentimentURL != "" {
		c.Sentiment.BaseURL = o.SentimentURL
	}
	if o.ServeAnalyzer {
		c.Sentiment.Serve = true
	}
	return c.Validate()
}
