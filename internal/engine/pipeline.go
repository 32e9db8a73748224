package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-forecast/internal/frame"
)

// Options tunes the encoding stage.
type Options struct {
	// StrictCategories fails the batch on a store type never seen in training.
	StrictCategories bool
	// UnknownCategoryCode replaces unseen store types when not strict.
	UnknownCategoryCode int
}

// DefaultOptions returns lenient encoding with the default sentinel.
func DefaultOptions() Options {
	return Options{UnknownCategoryCode: DefaultUnknownCategoryCode}
}

// Report summarises one batch.
type Report struct {
	Rows              int
	UnknownStoreTypes int
	Timings           map[Stage]time.Duration
}

// Prepared holds the two frames the predict stage consumes. Original is the
// cleaned record set with every derived field; Features is the model input.
type Prepared struct {
	Original *frame.Frame
	Features *frame.Frame
	Report   Report
}

// Output is a scored batch.
type Output struct {
	Frame   *frame.Frame
	Payload []byte
	Report  Report
}

// Pipeline chains clean, derive, encode, select and predict. It holds no
// per-batch state and may be shared across goroutines.
type Pipeline struct {
	logger    *slog.Logger
	cleaner   *Cleaner
	deriver   *FeatureDeriver
	encoder   *Encoder
	predictor *Predictor
	model     Model
}

// NewPipeline constructs a pipeline over loaded artifacts. model may be nil
// when only Prepare is used.
func NewPipeline(logger *slog.Logger, artifacts *Artifacts, model Model, opts Options) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := artifacts.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline artifacts: %w", err)
	}
	return &Pipeline{
		logger:    logger,
		cleaner:   NewCleaner(),
		deriver:   NewFeatureDeriver(),
		encoder:   NewEncoder(artifacts, opts),
		predictor: NewPredictor(),
		model:     model,
	}, nil
}

// Prepare runs every stage up to and including feature selection.
func (p *Pipeline) Prepare(raw *frame.Frame) (*Prepared, error) {
	report := Report{Rows: raw.Len(), Timings: make(map[Stage]time.Duration, 5)}

	var cleaned, expanded, derived, encoded, features *frame.Frame
	err := p.stage(StageClean, raw.Len(), &report, func() (err error) {
		cleaned, err = p.cleaner.Clean(raw)
		return err
	})
	if err == nil {
		err = p.stage(StageDerive, raw.Len(), &report, func() (err error) {
			if expanded, err = p.deriver.Expand(cleaned); err != nil {
				return err
			}
			derived, err = p.deriver.DropIntermediate(expanded)
			return err
		})
	}
	if err == nil {
		err = p.stage(StageEncode, raw.Len(), &report, func() (err error) {
			var enc EncodeReport
			encoded, enc, err = p.encoder.Encode(derived)
			report.UnknownStoreTypes = enc.UnknownStoreTypes
			return err
		})
	}
	if err == nil {
		err = p.stage(StageSelect, raw.Len(), &report, func() (err error) {
			features, err = p.encoder.Select(encoded)
			return err
		})
	}
	if err != nil {
		return nil, err
	}

	if report.UnknownStoreTypes > 0 {
		p.logger.Warn("unseen store types encoded as sentinel",
			slog.Int("rows", report.UnknownStoreTypes),
		)
	}
	return &Prepared{Original: expanded, Features: features, Report: report}, nil
}

// Run prepares the batch, scores it and serializes the scored records.
func (p *Pipeline) Run(ctx context.Context, raw *frame.Frame) (*Output, error) {
	prepared, err := p.Prepare(raw)
	if err != nil {
		return nil, err
	}
	report := prepared.Report

	var scored *frame.Frame
	err = p.stage(StagePredict, raw.Len(), &report, func() (err error) {
		scored, err = p.predictor.Predict(ctx, p.model, prepared.Original, prepared.Features)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload, err := Serialize(scored)
	if err != nil {
		return nil, fmt.Errorf("serialize output: %w", err)
	}
	return &Output{Frame: scored, Payload: payload, Report: report}, nil
}

// stage times fn, records the timing and checks the row count is unchanged.
func (p *Pipeline) stage(stage Stage, rows int, report *Report, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	report.Timings[stage] = elapsed
	if err != nil {
		p.logger.Debug("stage failed", slog.String("stage", string(stage)), slog.Any("error", err))
		return err
	}
	p.logger.Debug("stage complete",
		slog.String("stage", string(stage)),
		slog.Int("rows", rows),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}
