package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-forecast/internal/frame"
)

// Stage names a pipeline step for error context and timings.
type Stage string

const (
	StageClean   Stage = "clean"
	StageDerive  Stage = "derive"
	StageEncode  Stage = "encode"
	StageSelect  Stage = "select"
	StagePredict Stage = "predict"
)

// Error kinds. Match them with errors.Is; use errors.As with *StageError
// for the stage, row and column.
var (
	ErrParse            = errors.New("parse error")
	ErrComputation      = errors.New("computation error")
	ErrMissingColumn    = frame.ErrMissingColumn
	ErrUnknownCategory  = errors.New("unknown category")
	ErrRowCountMismatch = errors.New("row count mismatch")
	ErrModel            = errors.New("model failure")
)

// StageError aborts a batch. Row is -1 when the failure is not tied to a row.
type StageError struct {
	Stage  Stage
	Kind   error
	Row    int
	Column string
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Stage, e.Kind)
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %s", e.Column)
	}
	if e.Row >= 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func rowError(stage Stage, kind error, row int, column string, err error) error {
	return &StageError{Stage: stage, Kind: kind, Row: row, Column: column, Err: err}
}

// columnError reports a required column that is absent or has the wrong type.
func columnError(stage Stage, column string, err error) error {
	if errors.Is(err, frame.ErrMissingColumn) {
		err = nil
	}
	return &StageError{Stage: stage, Kind: ErrMissingColumn, Row: -1, Column: column, Err: err}
}

func requireColumns(f *frame.Frame, stage Stage, names ...string) error {
	for _, name := range names {
		if !f.Has(name) {
			return columnError(stage, name, nil)
		}
	}
	return nil
}

func getColumn[T frame.Element](f *frame.Frame, stage Stage, name string) (*frame.Series[T], error) {
	s, err := frame.Get[T](f, name)
	if err != nil {
		return nil, columnError(stage, name, err)
	}
	return s, nil
}
