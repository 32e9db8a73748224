// Package ingest reads raw store/date observations from files and request
// bodies.
package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

var missingTokens = []string{"", "NaN", "nan", "NA", "null"}

// ReadCSV loads records from a CSV file with a header row naming the source
// columns. Extra columns such as Id or Customers are ignored.
func ReadCSV(r io.Reader) ([]models.Record, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingTokens),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	cols := make(map[string]series.Series, len(models.SourceColumns))
	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, name := range models.SourceColumns {
		if !present[name] {
			return nil, fmt.Errorf("read csv: %w: %s", frame.ErrMissingColumn, name)
		}
		cols[name] = df.Col(name)
	}

	records := make([]models.Record, df.Nrow())
	for i := range records {
		row := csvRow{cols: cols, index: i}
		rec := models.Record{
			Store:                     row.int(models.ColStore),
			DayOfWeek:                 row.int(models.ColDayOfWeek),
			Date:                      row.text(models.ColDate),
			Open:                      row.int(models.ColOpen),
			Promo:                     row.int(models.ColPromo),
			StateHoliday:              models.Code(row.text(models.ColStateHoliday)),
			SchoolHoliday:             row.int(models.ColSchoolHoliday),
			StoreType:                 row.text(models.ColStoreType),
			Assortment:                row.text(models.ColAssortment),
			CompetitionDistance:       row.float(models.ColCompetitionDistance),
			CompetitionOpenSinceMonth: row.float(models.ColCompetitionOpenSinceMonth),
			CompetitionOpenSinceYear:  row.float(models.ColCompetitionOpenSinceYear),
			Promo2:                    row.int(models.ColPromo2),
			Promo2SinceWeek:           row.float(models.ColPromo2SinceWeek),
			Promo2SinceYear:           row.float(models.ColPromo2SinceYear),
		}
		if v := row.text(models.ColPromoInterval); v != "" {
			rec.PromoInterval = models.String(v)
		}
		if row.err != nil {
			return nil, fmt.Errorf("read csv: line %d: %w", i+2, row.err)
		}
		records[i] = rec
	}
	return records, nil
}

// csvRow reads typed cells of one row and keeps the first conversion error.
type csvRow struct {
	cols  map[string]series.Series
	index int
	err   error
}

func (r *csvRow) text(name string) string {
	elem := r.cols[name].Elem(r.index)
	if elem.IsNA() {
		return ""
	}
	v := strings.TrimSpace(elem.String())
	if isMissing(v) {
		return ""
	}
	return v
}

func (r *csvRow) float(name string) *float64 {
	v := r.text(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, v)
		return nil
	}
	return &f
}

func (r *csvRow) int(name string) int {
	v := r.text(name)
	if v == "" {
		r.fail(name, v)
		return 0
	}
	n, err := strconv.Atoi(v)
	if err == nil {
		return n
	}
	f, ferr := strconv.ParseFloat(v, 64)
	if ferr != nil || f != float64(int(f)) {
		r.fail(name, v)
		return 0
	}
	return int(f)
}

func (r *csvRow) fail(name, value string) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: invalid value %q", name, value)
	}
}

func isMissing(v string) bool {
	for _, token := range missingTokens {
		if v == token {
			return true
		}
	}
	return false
}
