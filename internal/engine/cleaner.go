package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
	"github.com/miradorstack/mirador-forecast/internal/utils"
)

// Column names after cleaning.
const (
	colStore                     = "store"
	colDayOfWeek                 = "day_of_week"
	colDate                      = "date"
	colOpen                      = "open"
	colPromo                     = "promo"
	colStateHoliday              = "state_holiday"
	colSchoolHoliday             = "school_holiday"
	colStoreType                 = "store_type"
	colAssortment                = "assortment"
	colCompetitionDistance       = "competition_distance"
	colCompetitionOpenSinceMonth = "competition_open_since_month"
	colCompetitionOpenSinceYear  = "competition_open_since_year"
	colPromo2                    = "promo2"
	colPromo2SinceWeek           = "promo2_since_week"
	colPromo2SinceYear           = "promo2_since_year"
	colPromoInterval             = "promo_interval"
	colMonthMap                  = "month_map"
	colIsPromo                   = "is_promo"
)

const (
	// DistanceFill stands in for a missing competition distance: no
	// competitor close enough to matter.
	DistanceFill = 200000.0
	// NoPromoInterval marks a row without a promo interval.
	NoPromoInterval = "0"
)

var cleanNames = map[string]string{
	models.ColStore:                     colStore,
	models.ColDayOfWeek:                 colDayOfWeek,
	models.ColDate:                      colDate,
	models.ColOpen:                      colOpen,
	models.ColPromo:                     colPromo,
	models.ColStateHoliday:              colStateHoliday,
	models.ColSchoolHoliday:             colSchoolHoliday,
	models.ColStoreType:                 colStoreType,
	models.ColAssortment:                colAssortment,
	models.ColCompetitionDistance:       colCompetitionDistance,
	models.ColCompetitionOpenSinceMonth: colCompetitionOpenSinceMonth,
	models.ColCompetitionOpenSinceYear:  colCompetitionOpenSinceYear,
	models.ColPromo2:                    colPromo2,
	models.ColPromo2SinceWeek:           colPromo2SinceWeek,
	models.ColPromo2SinceYear:           colPromo2SinceYear,
	models.ColPromoInterval:             colPromoInterval,
}

// Cleaner renames the raw columns, parses dates and fills missing values.
// Every substitution depends only on the row's own date.
type Cleaner struct{}

// NewCleaner returns a Cleaner.
func NewCleaner() *Cleaner { return &Cleaner{} }

// Clean returns the cleaned frame. The input is not modified.
func (c *Cleaner) Clean(raw *frame.Frame) (*frame.Frame, error) {
	if err := requireColumns(raw, StageClean, models.SourceColumns...); err != nil {
		return nil, err
	}
	f, err := raw.Rename(cleanNames)
	if err != nil {
		return nil, fmt.Errorf("%s: rename columns: %w", StageClean, err)
	}

	dates, err := parseDates(f)
	if err != nil {
		return nil, err
	}

	distance, err := getColumn[float64](f, StageClean, colCompetitionDistance)
	if err != nil {
		return nil, err
	}
	filledDistance := make([]float64, f.Len())
	for i, v := range distance.Values() {
		if distance.IsNull(i) || math.IsNaN(v) {
			v = DistanceFill
		}
		filledDistance[i] = v
	}

	fills := []struct {
		name string
		fill func(time.Time) int64
	}{
		{colCompetitionOpenSinceMonth, func(d time.Time) int64 { return int64(d.Month()) }},
		{colCompetitionOpenSinceYear, func(d time.Time) int64 { return int64(d.Year()) }},
		{colPromo2SinceWeek, func(d time.Time) int64 { _, w := d.ISOWeek(); return int64(w) }},
		{colPromo2SinceYear, func(d time.Time) int64 { return int64(d.Year()) }},
	}
	cols := []frame.Column{
		frame.NewSeries(colDate, dates, nil),
		frame.NewSeries(colCompetitionDistance, filledDistance, nil),
	}
	for _, fl := range fills {
		col, err := fillInt(f, fl.name, dates, fl.fill)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	interval, err := getColumn[string](f, StageClean, colPromoInterval)
	if err != nil {
		return nil, err
	}
	intervals := make([]string, f.Len())
	monthMap := make([]string, f.Len())
	isPromo := make([]int64, f.Len())
	for i, v := range interval.Values() {
		if interval.IsNull(i) || strings.TrimSpace(v) == "" {
			v = NoPromoInterval
		}
		intervals[i] = v
		monthMap[i] = dates[i].Format("Jan")
		isPromo[i] = promoActive(v, monthMap[i])
	}
	cols = append(cols,
		frame.NewSeries(colPromoInterval, intervals, nil),
		frame.NewSeries(colMonthMap, monthMap, nil),
		frame.NewSeries(colIsPromo, isPromo, nil),
	)

	return f.With(cols...)
}

func parseDates(f *frame.Frame) ([]time.Time, error) {
	col, err := f.Column(colDate)
	if err != nil {
		return nil, columnError(StageClean, colDate, err)
	}
	switch s := col.(type) {
	case *frame.Series[time.Time]:
		return s.Values(), nil
	case *frame.Series[string]:
		dates := make([]time.Time, s.Len())
		for i, v := range s.Values() {
			if s.IsNull(i) {
				return nil, rowError(StageClean, ErrParse, i, colDate, fmt.Errorf("date is missing"))
			}
			d, err := utils.ParseDate(v)
			if err != nil {
				return nil, rowError(StageClean, ErrParse, i, colDate, err)
			}
			dates[i] = d
		}
		return dates, nil
	default:
		return nil, columnError(StageClean, colDate, fmt.Errorf("%w: date is %s", frame.ErrColumnType, col.Kind()))
	}
}

// fillInt replaces missing values with fill(date) and casts to integer.
func fillInt(f *frame.Frame, name string, dates []time.Time, fill func(time.Time) int64) (*frame.Series[int64], error) {
	s, err := getColumn[float64](f, StageClean, name)
	if err != nil {
		return nil, err
	}
	out := make([]int64, s.Len())
	for i, v := range s.Values() {
		switch {
		case s.IsNull(i) || math.IsNaN(v):
			out[i] = fill(dates[i])
		case math.IsInf(v, 0):
			return nil, rowError(StageClean, ErrParse, i, name, fmt.Errorf("value %v is not finite", v))
		default:
			out[i] = int64(v)
		}
	}
	return frame.NewSeries(name, out, nil), nil
}

// promoActive reports 1 when month appears as a token of the interval.
func promoActive(interval, month string) int64 {
	if interval == NoPromoInterval {
		return 0
	}
	for _, token := range strings.Split(interval, ",") {
		if token == month {
			return 1
		}
	}
	return 0
}
