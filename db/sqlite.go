package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"linpredict/ml"
)

// Store is the training and prediction audit log.
type Store struct {
	database *sql.DB
}

// InitDB opens the SQLite database at path in WAL mode and creates the
// tables. Missing parent directories are created.
func InitDB(path string) (*Store, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(time.Hour)

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        preset VARCHAR(32),
        optimizer VARCHAR(16),
        learning_rate REAL,
        epochs INTEGER,
        final_loss REAL,
        weights TEXT,
        bias REAL,
        r2 REAL,
        duration_ms INTEGER,
        error TEXT DEFAULT '',
        trained_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY,
        preset VARCHAR(32),
        input TEXT,
        value REAL,
        created_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_preset ON predictions(preset, created_at);
    `

	if _, err = database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{database: database}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.database == nil {
		return nil
	}
	return s.database.Close()
}

// TrainingRun is one row of training_log.
type TrainingRun struct {
	Preset       string    `json:"preset"`
	Optimizer    string    `json:"optimizer"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	FinalLoss    float64   `json:"final_loss"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	R2           float64   `json:"r2"`
	DurationMS   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
}

// NewTrainingRun builds a log row from a finished attempt.
func NewTrainingRun(preset ml.Preset, report ml.TrainReport, model ml.LinearModel, trainErr error) TrainingRun {
	run := TrainingRun{
		Preset:       preset.Name,
		Optimizer:    string(preset.Train.Optimizer),
		LearningRate: preset.Train.LearningRate,
		Epochs:       report.Epochs,
		FinalLoss:    report.FinalLoss,
		Weights:      model.Weights,
		Bias:         model.Bias,
		R2:           report.R2,
		DurationMS:   report.Duration.Milliseconds(),
		TrainedAt:    time.Now().UTC(),
	}
	if trainErr != nil {
		run.Error = trainErr.Error()
	}
	return run
}

var errNotInitialized = errors.New("database not initialized")

// SaveTrainingRun appends a training attempt.
func (s *Store) SaveTrainingRun(run TrainingRun) error {
	if s == nil || s.database == nil {
		return errNotInitialized
	}
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return err
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	_, err = s.database.Exec(`
        INSERT INTO training_log (
            preset, optimizer, learning_rate, epochs, final_loss,
            weights, bias, r2, duration_ms, error, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Preset, run.Optimizer, run.LearningRate, run.Epochs, run.FinalLoss,
		string(weights), run.Bias, run.R2, run.DurationMS, run.Error, run.TrainedAt)
	return err
}

// LoadTrainingLog returns the most recent attempts for preset, newest first.
// An empty preset returns all presets.
func (s *Store) LoadTrainingLog(preset string, limit int) ([]TrainingRun, error) {
	if s == nil || s.database == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.database.Query(`
        SELECT preset, optimizer, learning_rate, epochs, final_loss,
               weights, bias, r2, duration_ms, error, trained_at
        FROM training_log
        WHERE ? = '' OR preset = ?
        ORDER BY id DESC
        LIMIT ?`, preset, preset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var weights string
		if err := rows.Scan(&run.Preset, &run.Optimizer, &run.LearningRate, &run.Epochs, &run.FinalLoss,
			&weights, &run.Bias, &run.R2, &run.DurationMS, &run.Error, &run.TrainedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &run.Weights); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PredictionRecord is one row of predictions.
type PredictionRecord struct {
	Preset    string    `json:"preset"`
	Input     []float64 `json:"input"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// SavePrediction appends a served prediction.
func (s *Store) SavePrediction(preset string, result ml.PredictionResult) error {
	if s == nil || s.database == nil {
		return errNotInitialized
	}
	if preset == "" {
		return errors.New("preset required")
	}
	input, err := json.Marshal(result.Input)
	if err != nil {
		return err
	}
	_, err = s.database.Exec(`
        INSERT INTO predictions (preset, input, value, created_at)
        VALUES (?, ?, ?, ?)`,
		preset, string(input), result.Value, time.Now().UTC())
	return err
}

// QueryPredictions returns the latest predictions for preset, newest first.
func (s *Store) QueryPredictions(preset string, limit int) ([]PredictionRecord, error) {
	if s == nil || s.database == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.database.Query(`
        SELECT preset, input, value, created_at
        FROM predictions
        WHERE preset = ?
        ORDER BY id DESC
        LIMIT ?`, preset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		var input string
		if err := rows.Scan(&rec.Preset, &input, &rec.Value, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns row counts of the audit tables.
func (s *Store) Stats() (map[string]int64, error) {
	if s == nil || s.database == nil {
		return nil, errNotInitialized
	}
	stats := make(map[string]int64, 2)
	for _, table := range []string{"training_log", "predictions"} {
		var count int64
		if err := s.database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
