package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one raw store/date observation as received from callers. JSON
// keys keep the source column names. Pointer fields may be missing.
type Record struct {
	Store                     int      `json:"Store" validate:"gt=0"`
	DayOfWeek                 int      `json:"DayOfWeek" validate:"gte=1,lte=7"`
	Date                      string   `json:"Date" validate:"required"`
	Open                      int      `json:"Open" validate:"oneof=0 1"`
	Promo                     int      `json:"Promo" validate:"oneof=0 1"`
	StateHoliday              Code     `json:"StateHoliday"`
	SchoolHoliday             int      `json:"SchoolHoliday" validate:"oneof=0 1"`
	StoreType                 string   `json:"StoreType" validate:"required"`
	Assortment                string   `json:"Assortment" validate:"required"`
	CompetitionDistance       *float64 `json:"CompetitionDistance"`
	CompetitionOpenSinceMonth *float64 `json:"CompetitionOpenSinceMonth"`
	CompetitionOpenSinceYear  *float64 `json:"CompetitionOpenSinceYear"`
	Promo2                    int      `json:"Promo2" validate:"oneof=0 1"`
	Promo2SinceWeek           *float64 `json:"Promo2SinceWeek"`
	Promo2SinceYear           *float64 `json:"Promo2SinceYear"`
	PromoInterval             *string  `json:"PromoInterval"`
}

// Source column names in the order callers supply them.
const (
	ColStore                     = "Store"
	ColDayOfWeek                 = "DayOfWeek"
	ColDate                      = "Date"
	ColOpen                      = "Open"
	ColPromo                     = "Promo"
	ColStateHoliday              = "StateHoliday"
	ColSchoolHoliday             = "SchoolHoliday"
	ColStoreType                 = "StoreType"
	ColAssortment                = "Assortment"
	ColCompetitionDistance       = "CompetitionDistance"
	ColCompetitionOpenSinceMonth = "CompetitionOpenSinceMonth"
	ColCompetitionOpenSinceYear  = "CompetitionOpenSinceYear"
	ColPromo2                    = "Promo2"
	ColPromo2SinceWeek           = "Promo2SinceWeek"
	ColPromo2SinceYear           = "Promo2SinceYear"
	ColPromoInterval             = "PromoInterval"
)

// SourceColumns lists the 16 raw columns in input order.
var SourceColumns = []string{
	ColStore, ColDayOfWeek, ColDate, ColOpen, ColPromo,
	ColStateHoliday, ColSchoolHoliday, ColStoreType, ColAssortment,
	ColCompetitionDistance, ColCompetitionOpenSinceMonth,
	ColCompetitionOpenSinceYear, ColPromo2, ColPromo2SinceWeek,
	ColPromo2SinceYear, ColPromoInterval,
}

// Float returns a pointer to v, handy when building records by hand.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Code is a categorical code that callers send either as a JSON string or
// as a bare number ("0" and 0 both mean a regular day).
type Code string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*c = Code(n.String())
	return nil
}
