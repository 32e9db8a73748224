package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-forecast/internal/models"
)

func newTestPipeline(t *testing.T, model Model) *Pipeline {
	t.Helper()
	p, err := NewPipeline(nil, testArtifacts(t), model, DefaultOptions())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestPipelineRun(t *testing.T) {
	var width int
	model := ModelFunc(func(ctx context.Context, X mat.Matrix) ([]float64, error) {
		r, c := X.Dims()
		width = c
		out := make([]float64, r)
		for i := range out {
			out[i] = 2.0
		}
		return out, nil
	})
	p := newTestPipeline(t, model)

	out, err := p.Run(context.Background(), rawFrame(t, sampleRecords()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if width != len(models.FeatureColumns) {
		t.Fatalf("model saw %d columns", width)
	}
	if out.Report.Rows != 3 || out.Frame.Len() != 3 {
		t.Fatalf("row count changed: report %d frame %d", out.Report.Rows, out.Frame.Len())
	}
	for _, stage := range []Stage{StageClean, StageDerive, StageEncode, StageSelect, StagePredict} {
		if _, ok := out.Report.Timings[stage]; !ok {
			t.Fatalf("missing timing for %s", stage)
		}
	}

	var records []map[string]any
	if err := json.Unmarshal(out.Payload, &records); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	first := records[0]
	if got := first[PredictionColumn].(float64); math.Abs(got-math.Expm1(2)) > 1e-9 {
		t.Fatalf("unexpected prediction %v", got)
	}
	if first["date"] != "2015-07-31T00:00:00.000Z" {
		t.Fatalf("unexpected date %v", first["date"])
	}
	if first["competition_since"] != "2008-09-01T00:00:00.000Z" {
		t.Fatalf("unexpected competition_since %v", first["competition_since"])
	}
	for _, key := range []string{"open", "promo_interval", "month_map", "is_promo", "year_week", "assortment"} {
		if _, ok := first[key]; !ok {
			t.Fatalf("output record missing %s", key)
		}
	}
	if first["assortment"] != "basic" {
		t.Fatalf("expected unencoded assortment label, got %v", first["assortment"])
	}
	if records[2]["competition_distance"].(float64) != DistanceFill {
		t.Fatalf("expected filled distance, got %v", records[2]["competition_distance"])
	}
}

func TestPipelinePrepareLeavesOriginalUnencoded(t *testing.T) {
	p := newTestPipeline(t, nil)
	prepared, err := p.Prepare(rawFrame(t, sampleRecords()))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if got := mustGet[string](t, prepared.Original, colStoreType).At(0); got != "c" {
		t.Fatalf("expected raw store type c, got %q", got)
	}
	if prepared.Original.Has(colStateHoliday+"_regular_day") {
		t.Fatalf("original frame carries encoded columns")
	}
	if prepared.Features.Width() != len(models.FeatureColumns) {
		t.Fatalf("unexpected feature width %d", prepared.Features.Width())
	}
}

func TestPipelineWithoutModel(t *testing.T) {
	p := newTestPipeline(t, nil)
	_, err := p.Run(context.Background(), rawFrame(t, sampleRecords()))
	if !errors.Is(err, ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
}

func TestPipelineStopsAtFirstFailingStage(t *testing.T) {
	model := &constModel{}
	p := newTestPipeline(t, model)
	records := sampleRecords()
	records[2].Date = "not-a-date"

	_, err := p.Run(context.Background(), rawFrame(t, records))
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageClean || stageErr.Row != 2 {
		t.Fatalf("expected clean failure on row 2, got %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model called after failure")
	}
}

func TestNewPipelineRejectsIncompleteArtifacts(t *testing.T) {
	a := testArtifacts(t)
	a.Year = nil
	if _, err := NewPipeline(nil, a, nil, DefaultOptions()); err == nil {
		t.Fatalf("expected error for missing year scaler")
	}
}

func TestPipelineLatencyWithinTarget(t *testing.T) {
	records := make([]models.Record, 0, 1000)
	for i := 0; i < 1000; i++ {
		r := sampleRecords()[i%3]
		r.Store = i + 1
		records = append(records, r)
	}
	raw := rawFrame(t, records)
	p := newTestPipeline(t, &constModel{value: 8})

	start := time.Now()
	const runs = 10
	for i := 0; i < runs; i++ {
		if _, err := p.Run(context.Background(), raw); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if avg := time.Since(start) / runs; avg > 500*time.Millisecond {
		t.Fatalf("average batch latency too high: %s", avg)
	}
}

func TestPipelineConcurrentRuns(t *testing.T) {
	p := newTestPipeline(t, ModelFunc(func(ctx context.Context, X mat.Matrix) ([]float64, error) {
		r, _ := X.Dims()
		return make([]float64, r), nil
	}))
	raw := rawFrame(t, sampleRecords())

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := p.Run(context.Background(), raw)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent run: %v", err)
		}
	}
}

func TestPipelineRunEmptyBatch(t *testing.T) {
	called := false
	model := ModelFunc(func(ctx context.Context, X mat.Matrix) ([]float64, error) {
		called = true
		return nil, nil
	})
	p := newTestPipeline(t, model)

	out, err := p.Run(context.Background(), rawFrame(t, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if called {
		t.Fatalf("model should not run for an empty batch")
	}
	if string(out.Payload) != "[]" {
		t.Fatalf("expected empty array, got %s", out.Payload)
	}
}
