package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveBatch(t *testing.T) {
	before := testutil.ToFloat64(batchesTotal.WithLabelValues(OutcomeSuccess))
	rowsBefore := testutil.ToFloat64(rowsTotal)

	ObserveBatch(20*time.Millisecond, "anything", 3, 1)

	if got := testutil.ToFloat64(batchesTotal.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected success counter %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(rowsTotal); got != rowsBefore+3 {
		t.Fatalf("expected rows %v, got %v", rowsBefore+3, got)
	}

	errBefore := testutil.ToFloat64(stageErrorsTotal.WithLabelValues("clean"))
	ObserveStageError("clean")
	if got := testutil.ToFloat64(stageErrorsTotal.WithLabelValues("clean")); got != errBefore+1 {
		t.Fatalf("expected stage error counter %v, got %v", errBefore+1, got)
	}
}
