package engine

import (
	"math"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// FrameFromRecords builds the raw frame, keeping the source column names.
// Nil pointers and NaN values become missing entries.
func FrameFromRecords(records []models.Record) (*frame.Frame, error) {
	n := len(records)
	var (
		store, dayOfWeek, open, promo = make([]int64, n), make([]int64, n), make([]int64, n), make([]int64, n)
		schoolHoliday, promo2         = make([]int64, n), make([]int64, n)
		date, stateHoliday            = make([]string, n), make([]string, n)
		storeType, assortment         = make([]string, n), make([]string, n)
		distance, compMonth, compYear = newNullable(n), newNullable(n), newNullable(n)
		promoWeek, promoYear          = newNullable(n), newNullable(n)
		interval                      = make([]string, n)
		intervalNull                  = make([]bool, n)
	)

	for i, r := range records {
		store[i] = int64(r.Store)
		dayOfWeek[i] = int64(r.DayOfWeek)
		date[i] = r.Date
		open[i] = int64(r.Open)
		promo[i] = int64(r.Promo)
		stateHoliday[i] = string(r.StateHoliday)
		schoolHoliday[i] = int64(r.SchoolHoliday)
		storeType[i] = r.StoreType
		assortment[i] = r.Assortment
		distance.set(i, r.CompetitionDistance)
		compMonth.set(i, r.CompetitionOpenSinceMonth)
		compYear.set(i, r.CompetitionOpenSinceYear)
		promo2[i] = int64(r.Promo2)
		promoWeek.set(i, r.Promo2SinceWeek)
		promoYear.set(i, r.Promo2SinceYear)
		if r.PromoInterval == nil || *r.PromoInterval == "" {
			intervalNull[i] = true
		} else {
			interval[i] = *r.PromoInterval
		}
	}

	return frame.FromColumns(
		frame.NewSeries(models.ColStore, store, nil),
		frame.NewSeries(models.ColDayOfWeek, dayOfWeek, nil),
		frame.NewSeries(models.ColDate, date, nil),
		frame.NewSeries(models.ColOpen, open, nil),
		frame.NewSeries(models.ColPromo, promo, nil),
		frame.NewSeries(models.ColStateHoliday, stateHoliday, nil),
		frame.NewSeries(models.ColSchoolHoliday, schoolHoliday, nil),
		frame.NewSeries(models.ColStoreType, storeType, nil),
		frame.NewSeries(models.ColAssortment, assortment, nil),
		distance.series(models.ColCompetitionDistance),
		compMonth.series(models.ColCompetitionOpenSinceMonth),
		compYear.series(models.ColCompetitionOpenSinceYear),
		frame.NewSeries(models.ColPromo2, promo2, nil),
		promoWeek.series(models.ColPromo2SinceWeek),
		promoYear.series(models.ColPromo2SinceYear),
		frame.NewSeries(models.ColPromoInterval, interval, intervalNull),
	)
}

type nullable struct {
	values []float64
	nulls  []bool
}

func newNullable(n int) *nullable {
	return &nullable{values: make([]float64, n), nulls: make([]bool, n)}
}

func (c *nullable) set(i int, v *float64) {
	if v == nil || math.IsNaN(*v) {
		c.nulls[i] = true
		return
	}
	c.values[i] = *v
}

func (c *nullable) series(name string) *frame.Series[float64] {
	return frame.NewSeries(name, c.values, c.nulls)
}
