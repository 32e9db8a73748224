package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-forecast/internal/api"
	"github.com/miradorstack/mirador-forecast/internal/cache"
	"github.com/miradorstack/mirador-forecast/internal/engine"
	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/metrics"
	"github.com/miradorstack/mirador-forecast/internal/models"
	"github.com/miradorstack/mirador-forecast/internal/utils"
)

// BatchRunner scores a raw frame. *engine.Pipeline satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, raw *frame.Frame) (*engine.Output, error)
}

// Options configures the forecast service.
type Options struct {
	// MaxBatchRows rejects larger batches; zero disables the limit.
	MaxBatchRows int
	// BatchTTL keeps scored payloads in the cache; zero disables caching.
	BatchTTL time.Duration
}

// ForecastService implements the gRPC ForecastEngine service and the HTTP
// Forecaster.
type ForecastService struct {
	api.UnimplementedForecastEngineServer

	logger    *slog.Logger
	pipeline  BatchRunner
	validate  *validator.Validate
	cache     cache.Provider
	opts      Options
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewForecastService constructs the forecast service facade.
func NewForecastService(logger *slog.Logger, pipeline BatchRunner, cacheProvider cache.Provider, opts Options) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &ForecastService{
		logger:    logger,
		pipeline:  pipeline,
		validate:  validator.New(),
		cache:     cacheProvider,
		opts:      opts,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Forecast validates, scores and serializes one batch. Identical batches
// are answered from the cache while the entry lives.
func (s *ForecastService) Forecast(ctx context.Context, records []models.Record) (models.ForecastResult, error) {
	if s.pipeline == nil {
		return models.ForecastResult{}, status.Error(codes.FailedPrecondition, "pipeline not configured")
	}
	if err := models.ValidateRecords(s.validate, records, s.opts.MaxBatchRows); err != nil {
		return models.ForecastResult{}, err
	}

	start := time.Now()
	result := models.ForecastResult{
		BatchID:   uuid.NewString(),
		Rows:      len(records),
		CreatedAt: s.now().UTC(),
	}

	key, keyErr := batchCacheKey(records)
	if keyErr == nil && s.opts.BatchTTL > 0 {
		if payload, err := s.cache.Get(ctx, key); err == nil {
			result.Payload = payload
			result.Cached = true
			metrics.ObserveBatch(time.Since(start), metrics.OutcomeCached, len(records), 0)
			s.logger.Debug("forecast served from cache", slog.String("batch_id", result.BatchID), slog.Int("rows", len(records)))
			return result, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("batch cache lookup failed", slog.Any("error", err))
		}
	}

	raw, err := engine.FrameFromRecords(records)
	if err != nil {
		metrics.ObserveBatch(time.Since(start), metrics.OutcomeError, len(records), 0)
		return models.ForecastResult{}, fmt.Errorf("build frame: %w", err)
	}
	out, err := s.pipeline.Run(ctx, raw)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveBatch(duration, metrics.OutcomeError, len(records), 0)
		var stageErr *engine.StageError
		if errors.As(err, &stageErr) {
			metrics.ObserveStageError(string(stageErr.Stage))
		}
		s.logger.Warn("forecast batch failed",
			slog.String("batch_id", result.BatchID),
			slog.Int("rows", len(records)),
			slog.Any("error", err),
		)
		return models.ForecastResult{}, err
	}

	result.Payload = out.Payload
	result.UnknownStoreTypes = out.Report.UnknownStoreTypes
	result.StageTimings = make(map[string]time.Duration, len(out.Report.Timings))
	for stage, d := range out.Report.Timings {
		result.StageTimings[string(stage)] = d
	}

	if keyErr == nil && s.opts.BatchTTL > 0 {
		if err := s.cache.Set(ctx, key, out.Payload, s.opts.BatchTTL); err != nil {
			s.logger.Warn("batch cache store failed", slog.Any("error", err))
		}
	}

	s.latencies.Observe(duration)
	metrics.ObserveBatch(duration, metrics.OutcomeSuccess, len(records), result.UnknownStoreTypes)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("forecast latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
	return result, nil
}

// Predict handles the gRPC call.
func (s *ForecastService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}

	records, err := api.FromProtoPredictRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Debug("Predict called", slog.Int("rows", len(records)))

	result, err := s.Forecast(ctx, records)
	if err != nil {
		if api.StatusCode(err) == codes.Internal {
			s.logger.Error("forecast failed", slog.Any("error", err))
		}
		return nil, api.StatusError(err)
	}

	resp, err := api.ToProtoPredictResponse(result)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return resp, nil
}

// HealthCheck returns the current health state.
func (s *ForecastService) HealthCheck(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	return api.HealthResponse(), nil
}

// LatencyP95 returns the current p95 batch latency.
func (s *ForecastService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func batchCacheKey(records []models.Record) (string, error) {
	body, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return "batch:" + hex.EncodeToString(sum[:]), nil
}
