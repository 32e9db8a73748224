package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-forecast/internal/frame"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

var artifactFiles = map[string]string{
	CompetitionDistanceFile: `kind: robust
center: 1000
scale: 500
`,
	CompetitionTimeMonthFile: `kind: robust
center: 0
scale: 10
`,
	PromoTimeWeekFile: `kind: minmax
data_min: 0
data_max: 300
`,
	YearFile: `kind: minmax
data_min: 2013
data_max: 2015
`,
	StoreTypeFile: `classes: ["d", "c", "b", "a"]
`,
}

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range artifactFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	a, err := LoadArtifacts(writeArtifacts(t), nil)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	return a
}

// sampleRecords covers a filled competition history, an active promo
// interval and a fully missing competition block.
func sampleRecords() []models.Record {
	return []models.Record{
		{
			Store: 1, DayOfWeek: 5, Date: "2015-07-31", Open: 1, Promo: 1,
			StateHoliday: "0", SchoolHoliday: 1, StoreType: "c", Assortment: "a",
			CompetitionDistance:       models.Float(1270),
			CompetitionOpenSinceMonth: models.Float(9),
			CompetitionOpenSinceYear:  models.Float(2008),
		},
		{
			Store: 2, DayOfWeek: 5, Date: "2015-07-31", Open: 1, Promo: 1,
			StateHoliday: "0", SchoolHoliday: 1, StoreType: "a", Assortment: "a",
			CompetitionDistance:       models.Float(570),
			CompetitionOpenSinceMonth: models.Float(11),
			CompetitionOpenSinceYear:  models.Float(2007),
			Promo2:                    1,
			Promo2SinceWeek:           models.Float(13),
			Promo2SinceYear:           models.Float(2010),
			PromoInterval:             models.String("Jan,Apr,Jul,Oct"),
		},
		{
			Store: 3, DayOfWeek: 1, Date: "2015-01-05", Open: 1, Promo: 0,
			StateHoliday: "a", SchoolHoliday: 0, StoreType: "d", Assortment: "c",
			Promo2:        1,
			PromoInterval: models.String("Feb,May,Aug,Nov"),
		},
	}
}

func rawFrame(t *testing.T, records []models.Record) *frame.Frame {
	t.Helper()
	f, err := FrameFromRecords(records)
	if err != nil {
		t.Fatalf("frame from records: %v", err)
	}
	return f
}

func mustGet[T frame.Element](t *testing.T, f *frame.Frame, name string) *frame.Series[T] {
	t.Helper()
	s, err := frame.Get[T](f, name)
	if err != nil {
		t.Fatalf("column %s: %v", name, err)
	}
	return s
}
