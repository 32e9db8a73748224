package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

const sampleCSV = `Id,Store,DayOfWeek,Date,Open,Promo,StateHoliday,SchoolHoliday,StoreType,Assortment,CompetitionDistance,CompetitionOpenSinceMonth,CompetitionOpenSinceYear,Promo2,Promo2SinceWeek,Promo2SinceYear,PromoInterval
1,1,4,2015-09-17,1,1,0,0,c,a,1270,9,2008,0,,,
2,3,4,2015-09-17,1,1,a,0,a,a,14130.0,12,2006,1,14,2011,"Jan,Apr,Jul,Oct"
3,879,4,2015-09-17,1,1,0,0,d,a,NaN,NA,,1,5,2013,"Feb,May,Aug,Nov"
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, 1, first.Store)
	assert.Equal(t, 4, first.DayOfWeek)
	assert.Equal(t, "2015-09-17", first.Date)
	assert.Equal(t, models.Code("0"), first.StateHoliday)
	require.NotNil(t, first.CompetitionDistance)
	assert.Equal(t, 1270.0, *first.CompetitionDistance)
	assert.Nil(t, first.Promo2SinceWeek)
	assert.Nil(t, first.PromoInterval)

	second := records[1]
	assert.Equal(t, models.Code("a"), second.StateHoliday)
	assert.Equal(t, 14130.0, *second.CompetitionDistance)
	require.NotNil(t, second.PromoInterval)
	assert.Equal(t, "Jan,Apr,Jul,Oct", *second.PromoInterval)

	third := records[2]
	assert.Nil(t, third.CompetitionDistance)
	assert.Nil(t, third.CompetitionOpenSinceMonth)
	assert.Nil(t, third.CompetitionOpenSinceYear)
	assert.Equal(t, 5.0, *third.Promo2SinceWeek)
}

func TestReadCSVMissingColumn(t *testing.T) {
	input := "Store,DayOfWeek,Date\n1,4,2015-09-17\n"
	_, err := ReadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrMissingColumn))
	assert.Contains(t, err.Error(), models.ColOpen)
}

func TestReadCSVInvalidInteger(t *testing.T) {
	input := strings.Replace(sampleCSV, "1,879,4", "1,879,x", 1)
	_, err := ReadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ColDayOfWeek)
}

func TestParseJSONShapes(t *testing.T) {
	single := `{"Store": 1, "DayOfWeek": 5, "Date": "2015-07-31", "Open": 1, "Promo": 1,
		"StateHoliday": 0, "SchoolHoliday": 1, "StoreType": "c", "Assortment": "a",
		"CompetitionDistance": 1270.0, "CompetitionOpenSinceMonth": null,
		"Promo2": 0, "PromoInterval": null}`

	cases := map[string]string{
		"object":   single,
		"array":    "[" + single + "]",
		"envelope": `{"records": [` + single + `]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			records, err := ReadJSON(strings.NewReader(body))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, 1, records[0].Store)
			assert.Equal(t, models.Code("0"), records[0].StateHoliday)
			assert.Nil(t, records[0].CompetitionOpenSinceMonth)
			assert.Nil(t, records[0].PromoInterval)
		})
	}
}

func TestParseJSONRejectsBadInput(t *testing.T) {
	_, err := ParseJSON([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = ParseJSON([]byte(`"records"`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`[{"Store": "one"}]`))
	assert.Error(t, err)
}
