package engine

import (
	"time"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/utils"
)

// Derived column names.
const (
	colYear                 = "year"
	colMonth                = "month"
	colDay                  = "day"
	colWeekOfYear           = "week_of_year"
	colYearWeek             = "year_week"
	colCompetitionSince     = "competition_since"
	colCompetitionTimeMonth = "competition_time_month"
	colPromoSince           = "promo_since"
	colPromoTimeWeek        = "promo_time_week"
)

// IntermediateColumns are dropped once derivation is complete.
var IntermediateColumns = []string{colOpen, colPromoInterval, colMonthMap}

// FeatureDeriver expands the observation date into calendar parts and
// time-since features and maps category codes to labels.
type FeatureDeriver struct{}

// NewFeatureDeriver returns a FeatureDeriver.
func NewFeatureDeriver() *FeatureDeriver { return &FeatureDeriver{} }

// Derive returns the feature frame with intermediate columns removed.
// Running it on its own output fails with ErrMissingColumn.
func (d *FeatureDeriver) Derive(cleaned *frame.Frame) (*frame.Frame, error) {
	if err := requireColumns(cleaned, StageDerive, IntermediateColumns...); err != nil {
		return nil, err
	}
	expanded, err := d.Expand(cleaned)
	if err != nil {
		return nil, err
	}
	return d.DropIntermediate(expanded)
}

// DropIntermediate removes the helper columns Expand leaves in place.
func (d *FeatureDeriver) DropIntermediate(expanded *frame.Frame) (*frame.Frame, error) {
	out, err := expanded.Drop(IntermediateColumns...)
	if err != nil {
		return nil, &StageError{Stage: StageDerive, Kind: ErrMissingColumn, Row: -1, Err: err}
	}
	return out, nil
}

// Expand adds every derived column and keeps the intermediate ones.
func (d *FeatureDeriver) Expand(cleaned *frame.Frame) (*frame.Frame, error) {
	dates, err := getColumn[time.Time](cleaned, StageDerive, colDate)
	if err != nil {
		return nil, err
	}
	ints := make(map[string]*frame.Series[int64], 4)
	for _, name := range []string{colCompetitionOpenSinceMonth, colCompetitionOpenSinceYear, colPromo2SinceWeek, colPromo2SinceYear} {
		if ints[name], err = getColumn[int64](cleaned, StageDerive, name); err != nil {
			return nil, err
		}
	}
	assortment, err := getColumn[string](cleaned, StageDerive, colAssortment)
	if err != nil {
		return nil, err
	}
	stateHoliday, err := getColumn[string](cleaned, StageDerive, colStateHoliday)
	if err != nil {
		return nil, err
	}

	n := cleaned.Len()
	var (
		year, month, day, week = make([]int64, n), make([]int64, n), make([]int64, n), make([]int64, n)
		yearWeek               = make([]string, n)
		compSince, promoSince  = make([]time.Time, n), make([]time.Time, n)
		compTime, promoTime    = make([]int64, n), make([]int64, n)
	)
	for i, date := range dates.Values() {
		year[i] = int64(date.Year())
		month[i] = int64(date.Month())
		day[i] = int64(date.Day())
		_, w := date.ISOWeek()
		week[i] = int64(w)
		yearWeek[i] = utils.YearWeek(date)

		since, err := utils.MonthStart(int(ints[colCompetitionOpenSinceYear].At(i)), int(ints[colCompetitionOpenSinceMonth].At(i)))
		if err != nil {
			return nil, rowError(StageDerive, ErrComputation, i, colCompetitionSince, err)
		}
		compSince[i] = since
		compTime[i] = int64(utils.DaysBetween(since, date) / 30)

		anchor, err := utils.WeekStart(int(ints[colPromo2SinceYear].At(i)), int(ints[colPromo2SinceWeek].At(i)))
		if err != nil {
			return nil, rowError(StageDerive, ErrComputation, i, colPromoSince, err)
		}
		promoSince[i] = anchor.AddDate(0, 0, -7)
		promoTime[i] = int64(utils.DaysBetween(promoSince[i], date) / 7)
	}

	return cleaned.With(
		frame.NewSeries(colYear, year, nil),
		frame.NewSeries(colMonth, month, nil),
		frame.NewSeries(colDay, day, nil),
		frame.NewSeries(colWeekOfYear, week, nil),
		frame.NewSeries(colYearWeek, yearWeek, nil),
		frame.NewSeries(colCompetitionSince, compSince, nil),
		frame.NewSeries(colCompetitionTimeMonth, compTime, nil),
		frame.NewSeries(colPromoSince, promoSince, nil),
		frame.NewSeries(colPromoTimeWeek, promoTime, nil),
		frame.Map(assortment, colAssortment, assortmentLabel),
		frame.Map(stateHoliday, colStateHoliday, stateHolidayLabel),
	)
}

func assortmentLabel(code string) string {
	switch code {
	case "a":
		return "basic"
	case "b":
		return "extra"
	default:
		return "extended"
	}
}

func stateHolidayLabel(code string) string {
	switch code {
	case "a":
		return "public_holiday"
	case "b":
		return "easter_holiday"
	case "c":
		return "christmas"
	default:
		return "regular_day"
	}
}
