package models

import "time"

// FeatureColumns is the ordered model input contract. The trained model
// sees exactly these columns in exactly this order.
var FeatureColumns = []string{
	"store",
	"promo",
	"store_type",
	"assortment",
	"competition_distance",
	"competition_open_since_month",
	"competition_open_since_year",
	"promo2",
	"promo2_since_week",
	"promo2_since_year",
	"competition_time_month",
	"promo_time_week",
	"day_of_week_sin",
	"day_of_week_cos",
	"month_sin",
	"month_cos",
	"day_sin",
	"day_cos",
	"week_of_year_sin",
	"week_of_year_cos",
}

// ForecastResult summarises one scored batch.
type ForecastResult struct {
	BatchID string
	Rows    int
	// Payload is the record-oriented JSON array with a prediction per row.
	Payload           []byte
	UnknownStoreTypes int
	Cached            bool
	StageTimings      map[string]time.Duration
	CreatedAt         time.Time
}
