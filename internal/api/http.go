package api

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-forecast/internal/ingest"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// maxBodyBytes caps a predict request body.
const maxBodyBytes = 64 << 20

// Forecaster scores a batch of raw records.
type Forecaster interface {
	Forecast(ctx context.Context, records []models.Record) (models.ForecastResult, error)
}

// ErrorResponse is the JSON body of every failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPHandler routes the REST surface: POST /v1/predict, GET /healthz and
// GET /metrics.
func NewHTTPHandler(forecaster Forecaster, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &httpHandler{forecaster: forecaster, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/predict", h.predict)
	})
	return r
}

type httpHandler struct {
	forecaster Forecaster
	logger     *slog.Logger
}

func (h *httpHandler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": ServingStatus})
}

// predict accepts a JSON body (array, {"records": [...]} or one record) or a
// CSV body with a header row, and answers with the scored record array.
func (h *httpHandler) predict(w http.ResponseWriter, r *http.Request) {
	if h.forecaster == nil {
		writeError(w, r, http.StatusServiceUnavailable, "FailedPrecondition", errors.New("forecaster not configured"))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var (
		records []models.Record
		err     error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		records, err = ingest.ReadCSV(body)
	} else {
		records, err = ingest.ReadJSON(body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "ResourceExhausted", err)
			return
		}
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", err)
		return
	}

	result, err := h.forecaster.Forecast(r.Context(), records)
	if err != nil {
		code := HTTPStatus(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("predict request failed", slog.Any("error", err))
		}
		writeError(w, r, code, StatusCode(err).String(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Batch-ID", result.BatchID)
	w.Header().Set("X-Cache-Hit", strconv.FormatBool(result.Cached))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind string, err error) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{Error: err.Error(), Code: kind})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
