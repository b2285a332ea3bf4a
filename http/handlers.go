package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"linpredict/db"
	"linpredict/logging"
	"linpredict/ml"
	"linpredict/monitoring"
	"linpredict/pipeline"
	"linpredict/sentiment"
)

// AuditReader reads back the audit log.
type AuditReader interface {
	QueryPredictions(preset string, limit int) ([]db.PredictionRecord, error)
	LoadTrainingLog(preset string, limit int) ([]db.TrainingRun, error)
}

// Deps are the collaborators of the API. Nil optional fields disable the
// routes that need them.
type Deps struct {
	Runners []*pipeline.Runner
	Audit   AuditReader
	Hub     *monitoring.Hub
	// Backend answers POST /analyze.
	Backend sentiment.Analyzer
	// Sentiment returns the current remote client used by /api/sentiment.
	Sentiment func() sentiment.Analyzer
	Metrics   http.Handler
}

// API holds the route handlers.
type API struct {
	runners  map[string]*pipeline.Runner
	names    []string
	audit    AuditReader
	hub      *monitoring.Hub
	backend  sentiment.Analyzer
	remote   func() sentiment.Analyzer
	metrics  http.Handler
	validate *validator.Validate
}

// NewAPI indexes the runners by preset name.
func NewAPI(deps Deps) *API {
	a := &API{
		runners:  make(map[string]*pipeline.Runner, len(deps.Runners)),
		audit:    deps.Audit,
		hub:      deps.Hub,
		backend:  deps.Backend,
		remote:   deps.Sentiment,
		metrics:  deps.Metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	presets := make(map[string]ml.Preset, len(deps.Runners))
	for _, r := range deps.Runners {
		a.runners[r.Preset().Name] = r
		presets[r.Preset().Name] = r.Preset()
	}
	a.names = ml.PresetNames(presets)
	if a.metrics == nil {
		a.metrics = promhttp.Handler()
	}
	return a
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleHome)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/models", a.handleModels)
	mux.HandleFunc("GET /api/models/{preset}", a.handleModel)
	mux.HandleFunc("GET /api/models/{preset}/dataset", a.handleDataset)
	mux.HandleFunc("POST /api/predict/{preset}", a.handlePredict)
	mux.HandleFunc("GET /api/predictions/{preset}", a.handlePredictions)
	mux.HandleFunc("GET /api/models/{preset}/training", a.handleTrainingLog)
	if a.hub != nil {
		mux.HandleFunc("GET /api/ws/chart", a.hub.HandleWebSocket)
	}
	if a.remote != nil {
		mux.HandleFunc("POST /api/sentiment", a.handleSentiment)
	}
	if a.backend != nil {
		mux.HandleFunc("POST /analyze", a.handleAnalyze)
	}
	mux.Handle("GET /metrics", a.metrics)
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "linpredict API is running!"})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelSummary struct {
	Name         string   `json:"name"`
	Arity        int      `json:"arity"`
	FeatureNames []string `json:"feature_names"`
	TargetName   string   `json:"target_name"`
	XLabel       string   `json:"x_label"`
	YLabel       string   `json:"y_label"`
	State        string   `json:"state"`
}

type modelDetail struct {
	modelSummary
	Train      ml.TrainConfig  `json:"train"`
	Weights    []float64       `json:"weights,omitempty"`
	Bias       *float64        `json:"bias,omitempty"`
	Report     *ml.TrainReport `json:"report,omitempty"`
	Trainings  int64           `json:"trainings"`
	LiveTensor int64           `json:"live_tensors"`
	Stats      pipeline.Stats  `json:"stats"`
}

func summarize(r *pipeline.Runner) modelSummary {
	p := r.Preset()
	ds := r.Session().Dataset()
	return modelSummary{
		Name:         p.Name,
		Arity:        p.Arity,
		FeatureNames: ds.FeatureNames,
		TargetName:   ds.TargetName,
		XLabel:       p.XLabel,
		YLabel:       p.YLabel,
		State:        r.Session().State().String(),
	}
}

func (a *API) handleModels(w http.ResponseWriter, r *http.Request) {
	models := make([]modelSummary, 0, len(a.names))
	for _, name := range a.names {
		models = append(models, summarize(a.runners[name]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

func (a *API) runner(w http.ResponseWriter, r *http.Request) (*pipeline.Runner, bool) {
	name := r.PathValue("preset")
	runner, ok := a.runners[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unsupported model preset "+strconv.Quote(name))
		return nil, false
	}
	return runner, true
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	runner, ok := a.runner(w, r)
	if !ok {
		return
	}
	session := runner.Session()
	detail := modelDetail{
		modelSummary: summarize(runner),
		Train:        runner.Preset().Train,
		Trainings:    session.Trainings(),
		LiveTensor:   session.Engine().Live(),
		Stats:        runner.Stats(),
	}
	if model, report, ok := session.Parameters(); ok {
		detail.Weights = model.Weights
		detail.Bias = &model.Bias
		detail.Report = &report
	}
	respondJSON(w, http.StatusOK, detail)
}

func (a *API) handleDataset(w http.ResponseWriter, r *http.Request) {
	runner, ok := a.runner(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, runner.Session().Dataset())
}

type predictRequest struct {
	Input []float64 `json:"input" validate:"required,min=1"`
}

type predictResponse struct {
	Preset  string    `json:"preset"`
	Input   []float64 `json:"input"`
	Value   float64   `json:"value"`
	Display string    `json:"display"`
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias"`
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	runner, ok := a.runner(w, r)
	if !ok {
		return
	}
	var req predictRequest
	if !a.decode(w, r, &req, http.StatusBadRequest) {
		return
	}

	result, err := runner.Predict(r.Context(), req.Input)
	if err != nil {
		status, message := predictionStatus(err)
		if status >= http.StatusInternalServerError {
			logging.Logger().Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("preset", runner.Preset().Name),
				zap.Error(err))
		}
		writeError(w, status, message)
		return
	}

	resp := predictResponse{
		Preset:  runner.Preset().Name,
		Input:   result.Input,
		Value:   result.Value,
		Display: result.Display(),
	}
	if model, _, ok := runner.Session().Parameters(); ok {
		resp.Weights = model.Weights
		resp.Bias = model.Bias
	}
	respondJSON(w, http.StatusOK, resp)
}

// statusClientClosedRequest is logged when the caller went away first.
const statusClientClosedRequest = 499

// predictionStatus maps a prediction error to a status and a message fit for
// the page.
func predictionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ml.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "prediction timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request canceled"
	case errors.Is(err, ml.ErrTraining):
		return http.StatusInternalServerError, "model training failed, try again"
	default:
		return http.StatusInternalServerError, "prediction failed"
	}
}

// queryLimit reads ?limit=, defaulting to 50.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50, true
	}
	l, err := strconv.Atoi(v)
	if err != nil || l <= 0 || l > 1000 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return 0, false
	}
	return l, true
}

func (a *API) auditRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Runner, int, bool) {
	runner, ok := a.runner(w, r)
	if !ok {
		return nil, 0, false
	}
	if a.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log disabled")
		return nil, 0, false
	}
	limit, ok := queryLimit(w, r)
	return runner, limit, ok
}

func (a *API) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	runner, limit, ok := a.auditRequest(w, r)
	if !ok {
		return
	}
	runs, err := a.audit.LoadTrainingLog(runner.Preset().Name, limit)
	if err != nil {
		logging.Logger().Error("load training log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load training log failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"preset": runner.Preset().Name,
		"runs":   runs,
	})
}

func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	runner, limit, ok := a.auditRequest(w, r)
	if !ok {
		return
	}
	records, err := a.audit.QueryPredictions(runner.Preset().Name, limit)
	if err != nil {
		logging.Logger().Error("query predictions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query predictions failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"preset":      runner.Preset().Name,
		"predictions": records,
	})
}

type analyzeRequest struct {
	Text string `json:"text" validate:"required"`
}

type sentimentResponse struct {
	Sentiment sentiment.Label `json:"sentiment"`
	InputText string          `json:"input_text"`
	Preview   string          `json:"preview,omitempty"`
}

// handleSentiment forwards text to the configured remote /analyze endpoint.
func (a *API) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !a.decode(w, r, &req, http.StatusBadRequest) {
		return
	}
	result, err := a.remote().Analyze(r.Context(), req.Text)
	if err != nil {
		status, outcome, message := sentimentStatus(err)
		monitoring.SentimentRequestsTotal.WithLabelValues(outcome).Inc()
		if status == http.StatusBadGateway {
			logging.Logger().Warn("sentiment endpoint failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
		}
		writeError(w, status, message)
		return
	}
	monitoring.SentimentRequestsTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, sentimentResponse{
		Sentiment: result.Sentiment,
		InputText: result.InputText,
		Preview:   sentiment.Preview(result.InputText),
	})
}

// sentimentStatus maps an Analyze error to a status code, a metrics outcome
// and the message returned to the caller.
func sentimentStatus(err error) (int, string, string) {
	var terr *sentiment.TransportError
	switch {
	case errors.Is(err, sentiment.ErrEmptyText), errors.Is(err, sentiment.ErrTextTooShort):
		return http.StatusBadRequest, "invalid", err.Error()
	case errors.As(err, &terr):
		return http.StatusBadGateway, "transport",
			fmt.Sprintf("Error: could not connect to the sentiment service at %s", terr.Endpoint)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "sentiment request timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled", "request canceled"
	default:
		return http.StatusInternalServerError, "error", "sentiment analysis failed"
	}
}

// handleAnalyze is the hosted /analyze backend.
func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !a.decode(w, r, &req, http.StatusUnprocessableEntity) {
		return
	}
	result, err := a.backend.Analyze(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, sentiment.ErrEmptyText) || errors.Is(err, sentiment.ErrTextTooShort) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logging.Logger().Error("analyze", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	respondJSON(w, http.StatusOK, sentimentResponse{Sentiment: result.Sentiment, InputText: req.Text})
}

// decode reads a JSON body into dst and validates it, answering with
// invalidStatus on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst interface{}, invalidStatus int) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, invalidStatus, "request body is empty")
		default:
			writeError(w, invalidStatus, "invalid JSON: "+err.Error())
		}
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, invalidStatus, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min":
			parts = append(parts, field+" must have at least "+fe.Param()+" value(s)")
		default:
			parts = append(parts, field+" failed "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Logger().Warn("encode response", zap.Error(err))
	}
}
