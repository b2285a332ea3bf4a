package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"linpredict/chart"
	"linpredict/config"
	"linpredict/db"
	lhttp "linpredict/http"
	"linpredict/logging"
	"linpredict/ml"
	"linpredict/monitoring"
	"linpredict/pipeline"
	"linpredict/sentiment"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	port := flag.Int("port", 0, "http port (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	dbPath := flag.String("db", "", "sqlite audit log path (overrides config)")
	sentimentURL := flag.String("sentiment-url", "", "base url of the /analyze endpoint (overrides config)")
	serveAnalyzer := flag.Bool("serve-analyzer", false, "host the lexicon /analyze backend")
	watch := flag.Bool("watch", true, "reload the config file when it changes")
	flag.Parse()

	overrides := config.Overrides{
		Port:          *port,
		LogLevel:      *logLevel,
		DatabasePath:  *dbPath,
		SentimentURL:  *sentimentURL,
		ServeAnalyzer: *serveAnalyzer,
	}

	// 1. Load config
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	if err := logging.Setup(cfg.LoggingOptions()); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Sync()
	logger := logging.Logger()

	// 2. Initialize database
	store, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	if rows, err := store.Stats(); err == nil {
		logger.Info("database initialized", zap.String("path", cfg.Database.Path), zap.Any("rows", rows))
	}

	// 3. Chart feed and model runners
	var surfaces []*chart.BroadcastSurface
	hub := monitoring.NewHub(func() []monitoring.Envelope {
		var envelopes []monitoring.Envelope
		for _, s := range surfaces {
			for _, msg := range s.Current() {
				envelopes = append(envelopes, monitoring.Envelope{Type: chart.MessageChartCreate, Data: msg})
			}
		}
		return envelopes
	})
	go hub.Start()
	defer hub.Stop()
	if err := monitoring.RegisterHubClients(prometheus.DefaultRegisterer, hub); err != nil {
		logger.Warn("register hub metrics", zap.Error(err))
	}

	presets := cfg.Presets()
	runners := make([]*pipeline.Runner, 0, len(presets))
	for _, name := range ml.PresetNames(presets) {
		surface := chart.NewBroadcastSurface(name, hub)
		surfaces = append(surfaces, surface)
		runner := pipeline.New(pipeline.Options{
			Preset:    presets[name],
			Surface:   surface,
			Audit:     store,
			Publisher: hub,
			LogEvery:  cfg.LogEvery(name),
		})
		engine := runner.Session().Engine()
		if err := monitoring.RegisterLiveTensors(prometheus.DefaultRegisterer, name, func() float64 {
			return float64(engine.Live())
		}); err != nil {
			logger.Warn("register tensor metrics", zap.String("preset", name), zap.Error(err))
		}
		runners = append(runners, runner)
		defer runner.Close()
	}

	// 4. Sentiment client, swapped on config reload
	var remote atomic.Pointer[sentiment.CachedAnalyzer]
	remote.Store(newSentimentClient(cfg.Sentiment))
	var backend sentiment.Analyzer
	if cfg.Sentiment.Serve {
		backend = sentiment.NewLexiconAnalyzer()
	}

	api := lhttp.NewAPI(lhttp.Deps{
		Runners:   runners,
		Audit:     store,
		Hub:       hub,
		Backend:   backend,
		Sentiment: func() sentiment.Analyzer { return remote.Load() },
	})
	server := lhttp.NewServer(lhttp.ServerConfig{
		Port:           cfg.Http.Port,
		ReadTimeout:    cfg.Http.ReadTimeout,
		WriteTimeout:   cfg.Http.WriteTimeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watch {
		if _, err := os.Stat(*configPath); err == nil {
			go func() {
				err := config.Watch(ctx, *configPath, func(next *config.Config) {
					if err := next.ApplyOverrides(overrides); err != nil {
						logger.Warn("ignoring reloaded config", zap.Error(err))
						return
					}
					if err := logging.SetLevel(next.Log.Level); err != nil {
						logger.Warn("reload log level", zap.Error(err))
					}
					remote.Store(newSentimentClient(next.Sentiment))
					logger.Info("sentiment client reloaded", zap.String("base_url", next.Sentiment.BaseURL))
				})
				if err != nil {
					logger.Warn("config watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	// 5. Serve until a signal arrives
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

// loadConfig reads path, falling back to defaults when the file is missing.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Config %s not found, using defaults", path)
		return config.Default(), nil
	}
	return cfg, err
}

func newSentimentClient(c config.SentimentConfig) *sentiment.CachedAnalyzer {
	cached, err := sentiment.NewCachedAnalyzer(sentiment.NewClient(c.BaseURL, c.Timeout), c.CacheSize)
	if err != nil {
		logging.Logger().Fatal("create sentiment cache", zap.Error(err))
	}
	return cached
}
