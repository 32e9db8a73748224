package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-forecast/internal/engine"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// ForecastChunked scores a large batch in chunks of chunkRows, at most
// workers at a time, and joins the chunk payloads in input order. Row
// numbers in returned errors refer to the full batch.
func (s *ForecastService) ForecastChunked(ctx context.Context, records []models.Record, chunkRows, workers int) ([]byte, error) {
	if chunkRows <= 0 {
		chunkRows = len(records)
	}
	if workers <= 0 {
		workers = 1
	}
	if len(records) == 0 {
		result, err := s.Forecast(ctx, records)
		if err != nil {
			return nil, err
		}
		return result.Payload, nil
	}

	chunks := (len(records) + chunkRows - 1) / chunkRows
	payloads := make([][]byte, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < chunks; i++ {
		i := i // per-iteration copy (go1.21 loop semantics)
		offset := i * chunkRows
		end := min(offset+chunkRows, len(records))
		g.Go(func() error {
			result, err := s.Forecast(gctx, records[offset:end])
			if err != nil {
				return rebaseRow(err, offset)
			}
			payloads[i] = result.Payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("chunked forecast complete",
		slog.Int("rows", len(records)),
		slog.Int("chunks", chunks),
		slog.Int("workers", workers),
	)
	return joinArrays(payloads), nil
}

// rebaseRow shifts a chunk-local row number by offset.
func rebaseRow(err error, offset int) error {
	if offset == 0 {
		return err
	}
	var stageErr *engine.StageError
	if errors.As(err, &stageErr) && stageErr.Row >= 0 {
		shifted := *stageErr
		shifted.Row += offset
		return &shifted
	}
	var recErr *models.RecordError
	if errors.As(err, &recErr) {
		return &models.RecordError{Row: recErr.Row + offset, Err: recErr.Err}
	}
	return err
}

// joinArrays concatenates JSON array documents into one array.
func joinArrays(parts [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	for _, part := range parts {
		inner := bytes.TrimSpace(part)
		inner = bytes.TrimPrefix(inner, []byte("["))
		inner = bytes.TrimSuffix(inner, []byte("]"))
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		buf.Write(inner)
		first = false
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
