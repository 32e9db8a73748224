package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/miradorstack/mirador-forecast/internal/api"
	"github.com/miradorstack/mirador-forecast/internal/cache"
	"github.com/miradorstack/mirador-forecast/internal/engine"
	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

type runnerStub struct {
	calls int
	out   *engine.Output
	err   error
}

func (r *runnerStub) Run(ctx context.Context, raw *frame.Frame) (*engine.Output, error) {
	r.calls++
	return r.out, r.err
}

func mustScaler(t *testing.T, spec engine.ScalerSpec) engine.Scaler {
	t.Helper()
	s, err := engine.NewScaler(spec)
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	return s
}

func newPipeline(t *testing.T, model engine.Model) *engine.Pipeline {
	t.Helper()
	storeType, err := engine.NewLabelEncoder([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("label encoder: %v", err)
	}
	artifacts := &engine.Artifacts{
		CompetitionDistance:  mustScaler(t, engine.ScalerSpec{Kind: "robust", Center: 1000, Scale: 500}),
		CompetitionTimeMonth: mustScaler(t, engine.ScalerSpec{Kind: "robust", Scale: 10}),
		PromoTimeWeek:        mustScaler(t, engine.ScalerSpec{Kind: "minmax", DataMax: 300}),
		Year:                 mustScaler(t, engine.ScalerSpec{Kind: "minmax", DataMin: 2013, DataMax: 2015}),
		StoreType:            storeType,
	}
	p, err := engine.NewPipeline(nil, artifacts, model, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p
}

func constModel(v float64) engine.Model {
	return engine.ModelFunc(func(ctx context.Context, X mat.Matrix) ([]float64, error) {
		rows, _ := X.Dims()
		out := make([]float64, rows)
		for i := range out {
			out[i] = v
		}
		return out, nil
	})
}

func record(store int) models.Record {
	return models.Record{
		Store: store, DayOfWeek: 5, Date: "2015-07-31", Open: 1, Promo: 1,
		StateHoliday: "0", SchoolHoliday: 1, StoreType: "c", Assortment: "a",
		CompetitionDistance:       models.Float(1270),
		CompetitionOpenSinceMonth: models.Float(9),
		CompetitionOpenSinceYear:  models.Float(2008),
	}
}

func TestForecastScoresBatch(t *testing.T) {
	service := NewForecastService(nil, newPipeline(t, constModel(2)), nil, Options{})

	result, err := service.Forecast(context.Background(), []models.Record{record(1), record(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID == "" || result.Rows != 2 || result.Cached {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := result.StageTimings["predict"]; !ok {
		t.Fatalf("expected predict timing, got %v", result.StageTimings)
	}

	var rows []map[string]any
	if err := json.Unmarshal(result.Payload, &rows); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[1]["prediction"].(float64); math.Abs(got-math.Expm1(2)) > 1e-9 {
		t.Fatalf("unexpected prediction %v", got)
	}
	if rows[1]["store"].(float64) != 2 {
		t.Fatalf("rows out of order: %v", rows[1]["store"])
	}
}

func TestForecastServesRepeatedBatchFromCache(t *testing.T) {
	runner := &runnerStub{out: &engine.Output{Payload: []byte(`[{"prediction":1}]`)}}
	provider := cache.NewMemoryProvider()
	service := NewForecastService(nil, runner, provider, Options{BatchTTL: time.Minute})

	records := []models.Record{record(1)}
	first, err := service.Forecast(context.Background(), records)
	if err != nil || first.Cached {
		t.Fatalf("first call: %+v %v", first, err)
	}
	second, err := service.Forecast(context.Background(), records)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.Cached || string(second.Payload) != `[{"prediction":1}]` {
		t.Fatalf("expected cached payload, got %+v", second)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", runner.calls)
	}
	if first.BatchID == second.BatchID {
		t.Fatalf("expected distinct batch ids")
	}
}

func TestForecastWithoutTTLSkipsCache(t *testing.T) {
	runner := &runnerStub{out: &engine.Output{Payload: []byte(`[]`)}}
	provider := cache.NewMemoryProvider()
	service := NewForecastService(nil, runner, provider, Options{})

	for i := 0; i < 2; i++ {
		if _, err := service.Forecast(context.Background(), []models.Record{record(1)}); err != nil {
			t.Fatalf("forecast: %v", err)
		}
	}
	if runner.calls != 2 || provider.Len() != 0 {
		t.Fatalf("expected uncached runs, calls=%d entries=%d", runner.calls, provider.Len())
	}
}

func TestForecastRejectsInvalidRecords(t *testing.T) {
	runner := &runnerStub{}
	service := NewForecastService(nil, runner, nil, Options{MaxBatchRows: 1})

	bad := record(1)
	bad.Open = 3
	if _, err := service.Forecast(context.Background(), []models.Record{bad}); !errors.Is(err, models.ErrInvalidRecord) {
		t.Fatalf("expected invalid record, got %v", err)
	}
	if _, err := service.Forecast(context.Background(), []models.Record{record(1), record(2)}); !errors.Is(err, models.ErrBatchTooLarge) {
		t.Fatalf("expected batch too large, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("pipeline should not run for rejected batches")
	}
}

func TestPredictMapsErrors(t *testing.T) {
	failing := engine.ModelFunc(func(ctx context.Context, X mat.Matrix) ([]float64, error) {
		return nil, errors.New("scorer down")
	})
	bad := record(1)
	bad.Date = "31/07/2015"

	cases := []struct {
		name    string
		service *ForecastService
		records []models.Record
		want    codes.Code
	}{
		{"model failure", NewForecastService(nil, newPipeline(t, failing), nil, Options{}), []models.Record{record(1)}, codes.Unavailable},
		{"parse error", NewForecastService(nil, newPipeline(t, constModel(1)), nil, Options{}), []models.Record{bad}, codes.InvalidArgument},
		{"no pipeline", NewForecastService(nil, nil, nil, Options{}), []models.Record{record(1)}, codes.FailedPrecondition},
		{"too large", NewForecastService(nil, &runnerStub{}, nil, Options{MaxBatchRows: 1}), []models.Record{record(1), record(2)}, codes.ResourceExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := api.ToProtoPredictRequest(tc.records)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			_, err = tc.service.Predict(context.Background(), req)
			if status.Code(err) != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestPredictReturnsRecords(t *testing.T) {
	service := NewForecastService(nil, newPipeline(t, constModel(0)), nil, Options{})
	req, err := api.ToProtoPredictRequest([]models.Record{record(7)})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	resp, err := service.Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.GetFields()
	if fields["rows"].GetNumberValue() != 1 || fields["batch_id"].GetStringValue() == "" {
		t.Fatalf("unexpected response: %v", resp)
	}
	records := fields["records"].GetListValue().GetValues()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0].GetStructValue().GetFields()
	if rec["store"].GetNumberValue() != 7 || rec["prediction"].GetNumberValue() != 0 {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestPredictNilRequest(t *testing.T) {
	service := NewForecastService(nil, &runnerStub{}, nil, Options{})
	if _, err := service.Predict(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	service := NewForecastService(nil, nil, nil, Options{})
	resp, err := service.HealthCheck(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != api.ServingStatus {
		t.Fatalf("unexpected status: %v", resp)
	}
}
