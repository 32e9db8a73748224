package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-forecast/internal/frame"
)

// PredictionColumn is the field attached to every output record.
const PredictionColumn = "prediction"

// DateLayout renders date columns in the serialized output.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Model scores a feature matrix, one value per row. Implementations return
// predictions on the log1p scale the model was trained on.
type Model interface {
	Predict(ctx context.Context, X mat.Matrix) ([]float64, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, X mat.Matrix) ([]float64, error)

// Predict implements Model.
func (f ModelFunc) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	return f(ctx, X)
}

// Predictor runs the model and attaches back-transformed predictions to the
// original records by row position.
type Predictor struct{}

// NewPredictor returns a Predictor.
func NewPredictor() *Predictor { return &Predictor{} }

// Predict returns original with a prediction column holding expm1 of the
// model output.
func (p *Predictor) Predict(ctx context.Context, model Model, original, features *frame.Frame) (*frame.Frame, error) {
	if original.Len() != features.Len() {
		return nil, rowCountError(original.Len(), features.Len(), "feature rows")
	}
	if model == nil {
		return nil, &StageError{Stage: StagePredict, Kind: ErrModel, Row: -1, Err: fmt.Errorf("model not configured")}
	}

	predictions := make([]float64, features.Len())
	if features.Len() > 0 {
		X, err := FeatureMatrix(features)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: StagePredict, Kind: ErrModel, Row: -1, Err: err}
		}
		raw, err := model.Predict(ctx, X)
		if err != nil {
			return nil, &StageError{Stage: StagePredict, Kind: ErrModel, Row: -1, Err: err}
		}
		if len(raw) != original.Len() {
			return nil, rowCountError(original.Len(), len(raw), "predictions")
		}
		for i, v := range raw {
			predictions[i] = math.Expm1(v)
		}
	}

	out, err := original.With(frame.NewSeries(PredictionColumn, predictions, nil))
	if err != nil {
		return nil, &StageError{Stage: StagePredict, Kind: ErrRowCountMismatch, Row: -1, Err: err}
	}
	return out, nil
}

func rowCountError(want, got int, what string) error {
	return &StageError{
		Stage: StagePredict,
		Kind:  ErrRowCountMismatch,
		Row:   -1,
		Err:   fmt.Errorf("%d original rows, %d %s", want, got, what),
	}
}

// FeatureMatrix copies a float64 feature frame into a dense row-major matrix
// with columns in frame order. The frame must have at least one row.
func FeatureMatrix(features *frame.Frame) (*mat.Dense, error) {
	names := features.Names()
	rows, width := features.Len(), len(names)
	if rows == 0 || width == 0 {
		return nil, &StageError{Stage: StagePredict, Kind: ErrRowCountMismatch, Row: -1, Err: fmt.Errorf("empty feature matrix %dx%d", rows, width)}
	}
	data := make([]float64, rows*width)
	for j, name := range names {
		col, err := getColumn[float64](features, StagePredict, name)
		if err != nil {
			return nil, err
		}
		for i, v := range col.Values() {
			data[i*width+j] = v
		}
	}
	return mat.NewDense(rows, width, data), nil
}

// Serialize renders f as a JSON array with one object per row. Keys follow
// column order, dates use DateLayout and non-finite or missing values are null.
func Serialize(f *frame.Frame) ([]byte, error) {
	names := f.Names()
	keys := make([][]byte, len(names))
	for j, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		keys[j] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < f.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, name := range names {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			if err := writeValue(&buf, f.Value(i, name)); err != nil {
				return nil, fmt.Errorf("serialize %s row %d: %w", name, i, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
		format := byte('f')
		if abs := math.Abs(x); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
			format = 'e'
		}
		buf.Write(strconv.AppendFloat(nil, x, format, -1, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case time.Time:
		buf.WriteByte('"')
		buf.WriteString(x.UTC().Format(DateLayout))
		buf.WriteByte('"')
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}
