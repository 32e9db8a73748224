package engine

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// StateHolidayCategories is the fixed one-hot domain. Every batch gets all
// four indicator columns whatever its composition.
var StateHolidayCategories = []string{"public_holiday", "easter_holiday", "christmas", "regular_day"}

var assortmentCodes = map[string]int64{
	"basic":    1,
	"extra":    2,
	"extended": 3,
}

type cycle struct {
	column string
	period float64
}

var cycles = []cycle{
	{colDayOfWeek, 7},
	{colMonth, 12},
	{colDay, 31},
	{colWeekOfYear, 52},
}

// DefaultUnknownCategoryCode is assigned to store types never seen in training.
const DefaultUnknownCategoryCode = -1

// EncodeReport counts rows that needed a fallback during encoding.
type EncodeReport struct {
	UnknownStoreTypes int
}

// Encoder rescales, encodes and adds cyclical features. It only reads its
// artifacts, so one Encoder can serve concurrent batches.
type Encoder struct {
	artifacts   *Artifacts
	strict      bool
	unknownCode int64
}

// NewEncoder builds an Encoder over loaded artifacts.
func NewEncoder(artifacts *Artifacts, opts Options) *Encoder {
	return &Encoder{
		artifacts:   artifacts,
		strict:      opts.StrictCategories,
		unknownCode: int64(opts.UnknownCategoryCode),
	}
}

// Encode returns the derived frame with scaled, encoded and cyclical
// columns. state_holiday is replaced by its indicator columns.
func (e *Encoder) Encode(derived *frame.Frame) (*frame.Frame, EncodeReport, error) {
	var report EncodeReport

	scaled := []struct {
		name   string
		scaler Scaler
		whole  bool
	}{
		{colCompetitionDistance, e.artifacts.CompetitionDistance, false},
		{colYear, e.artifacts.Year, false},
		{colCompetitionTimeMonth, e.artifacts.CompetitionTimeMonth, true},
		{colPromoTimeWeek, e.artifacts.PromoTimeWeek, true},
	}
	cols := make([]frame.Column, 0, len(scaled)+2+2*len(cycles))
	for _, s := range scaled {
		values, err := numeric(derived, s.name)
		if err != nil {
			return nil, report, err
		}
		out := make([]float64, len(values))
		for i, v := range values {
			if s.whole {
				v = math.Trunc(v)
			}
			out[i] = s.scaler.Transform(v)
		}
		cols = append(cols, frame.NewSeries(s.name, out, nil))
	}

	storeType, err := getColumn[string](derived, StageEncode, colStoreType)
	if err != nil {
		return nil, report, err
	}
	codes := make([]int64, storeType.Len())
	for i, v := range storeType.Values() {
		code, ok := e.artifacts.StoreType.Encode(v)
		if !ok {
			if e.strict {
				return nil, report, rowError(StageEncode, ErrUnknownCategory, i, colStoreType, fmt.Errorf("value %q", v))
			}
			report.UnknownStoreTypes++
			codes[i] = e.unknownCode
			continue
		}
		codes[i] = int64(code)
	}
	cols = append(cols, frame.NewSeries(colStoreType, codes, nil))

	assortment, err := getColumn[string](derived, StageEncode, colAssortment)
	if err != nil {
		return nil, report, err
	}
	levels := make([]int64, assortment.Len())
	for i, v := range assortment.Values() {
		level, ok := assortmentCodes[v]
		if !ok {
			return nil, report, rowError(StageEncode, ErrUnknownCategory, i, colAssortment, fmt.Errorf("value %q", v))
		}
		levels[i] = level
	}
	cols = append(cols, frame.NewSeries(colAssortment, levels, nil))

	for _, c := range cycles {
		values, err := numeric(derived, c.column)
		if err != nil {
			return nil, report, err
		}
		sin, cos := make([]float64, len(values)), make([]float64, len(values))
		for i, v := range values {
			angle := 2 * math.Pi * v / c.period
			sin[i], cos[i] = math.Sin(angle), math.Cos(angle)
		}
		cols = append(cols,
			frame.NewSeries(c.column+"_sin", sin, nil),
			frame.NewSeries(c.column+"_cos", cos, nil),
		)
	}

	holidays, err := getColumn[string](derived, StageEncode, colStateHoliday)
	if err != nil {
		return nil, report, err
	}
	for _, category := range StateHolidayCategories {
		cols = append(cols, frame.Map(holidays, colStateHoliday+"_"+category, func(v string) bool { return v == category }))
	}

	out, err := derived.With(cols...)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", StageEncode, err)
	}
	out, err = out.Drop(colStateHoliday)
	if err != nil {
		return nil, report, columnError(StageEncode, colStateHoliday, err)
	}
	return out, report, nil
}

// Select projects the encoded frame onto the model columns as float64.
func (e *Encoder) Select(encoded *frame.Frame) (*frame.Frame, error) {
	cols := make([]frame.Column, 0, len(models.FeatureColumns))
	for _, name := range models.FeatureColumns {
		values, err := numeric(encoded, name)
		if err != nil {
			return nil, relabel(err, StageSelect)
		}
		cols = append(cols, frame.NewSeries(name, values, nil))
	}
	out := frame.New(encoded.Len())
	return out.With(cols...)
}

// numeric reads an int, float or bool column as float64 and rejects
// missing values.
func numeric(f *frame.Frame, name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, columnError(StageEncode, name, err)
	}
	out := make([]float64, col.Len())
	for i := range out {
		switch v := col.Interface(i).(type) {
		case int64:
			out[i] = float64(v)
		case float64:
			out[i] = v
		case bool:
			if v {
				out[i] = 1
			}
		case nil:
			return nil, rowError(StageEncode, ErrComputation, i, name, fmt.Errorf("missing value"))
		default:
			return nil, columnError(StageEncode, name, fmt.Errorf("%w: %s is %s", frame.ErrColumnType, name, col.Kind()))
		}
	}
	return out, nil
}

func relabel(err error, stage Stage) error {
	if se, ok := err.(*StageError); ok {
		copied := *se
		copied.Stage = stage
		return &copied
	}
	return err
}
