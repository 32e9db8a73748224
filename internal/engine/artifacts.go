package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Artifact file names inside the artifacts directory.
const (
	CompetitionDistanceFile  = "competition_distance_scaler.yaml"
	CompetitionTimeMonthFile = "competition_time_month_scaler.yaml"
	PromoTimeWeekFile        = "promo_time_week.yaml"
	StoreTypeFile            = "store_type_label_encoder.yaml"
	YearFile                 = "year_scaler.yaml"
)

// Scaler rescales a numeric feature with parameters captured at training
// time. Implementations are immutable.
type Scaler interface {
	Transform(v float64) float64
}

// ScalerSpec is the on-disk form of a pre-fit scaler.
type ScalerSpec struct {
	Kind         string    `yaml:"kind"`
	DataMin      float64   `yaml:"data_min"`
	DataMax      float64   `yaml:"data_max"`
	FeatureRange []float64 `yaml:"feature_range"`
	Center       float64   `yaml:"center"`
	Scale        float64   `yaml:"scale"`
	Mean         float64   `yaml:"mean"`
	Std          float64   `yaml:"std"`
}

// LabelEncoderSpec is the on-disk form of a pre-fit label encoder.
type LabelEncoderSpec struct {
	Classes []string `yaml:"classes"`
}

// MinMaxScaler maps [DataMin, DataMax] onto the feature range.
type MinMaxScaler struct {
	dataMin, dataRange float64
	lo, hi             float64
}

// Transform implements Scaler.
func (s MinMaxScaler) Transform(v float64) float64 {
	return (v-s.dataMin)/s.dataRange*(s.hi-s.lo) + s.lo
}

// RobustScaler subtracts the median and divides by the interquartile range.
type RobustScaler struct {
	center, scale float64
}

// Transform implements Scaler.
func (s RobustScaler) Transform(v float64) float64 {
	return (v - s.center) / s.scale
}

// StandardScaler standardises to zero mean and unit variance.
type StandardScaler struct {
	mean, std float64
}

// Transform implements Scaler.
func (s StandardScaler) Transform(v float64) float64 {
	return (v - s.mean) / s.std
}

// NewScaler builds a Scaler from its spec. A zero spread is treated as 1,
// the way the training library handled constant features.
func NewScaler(spec ScalerSpec) (Scaler, error) {
	switch spec.Kind {
	case "minmax":
		lo, hi := 0.0, 1.0
		if len(spec.FeatureRange) != 0 {
			if len(spec.FeatureRange) != 2 || spec.FeatureRange[0] >= spec.FeatureRange[1] {
				return nil, fmt.Errorf("invalid feature_range %v", spec.FeatureRange)
			}
			lo, hi = spec.FeatureRange[0], spec.FeatureRange[1]
		}
		if spec.DataMax < spec.DataMin {
			return nil, fmt.Errorf("data_max %v below data_min %v", spec.DataMax, spec.DataMin)
		}
		return MinMaxScaler{dataMin: spec.DataMin, dataRange: nonZero(spec.DataMax - spec.DataMin), lo: lo, hi: hi}, nil
	case "robust":
		return RobustScaler{center: spec.Center, scale: nonZero(spec.Scale)}, nil
	case "standard":
		return StandardScaler{mean: spec.Mean, std: nonZero(spec.Std)}, nil
	default:
		return nil, fmt.Errorf("unknown scaler kind %q", spec.Kind)
	}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// LabelEncoder maps categories seen during training to their index in the
// sorted class list.
type LabelEncoder struct {
	classes []string
	codes   map[string]int
}

// NewLabelEncoder builds an encoder over the given classes.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("label encoder has no classes")
	}
	sorted := slices.Clone(classes)
	slices.Sort(sorted)
	codes := make(map[string]int, len(sorted))
	for i, class := range sorted {
		if _, dup := codes[class]; dup {
			return nil, fmt.Errorf("duplicate class %q", class)
		}
		codes[class] = i
	}
	return &LabelEncoder{classes: sorted, codes: codes}, nil
}

// Encode returns the code for value and whether it was seen during training.
func (e *LabelEncoder) Encode(value string) (int, bool) {
	code, ok := e.codes[value]
	return code, ok
}

// Classes returns the classes seen during training.
func (e *LabelEncoder) Classes() []string {
	return slices.Clone(e.classes)
}

// Artifacts holds the pre-fit transformers for one pipeline. Each numeric
// feature owns its scaler.
type Artifacts struct {
	CompetitionDistance  Scaler
	CompetitionTimeMonth Scaler
	PromoTimeWeek        Scaler
	Year                 Scaler
	StoreType            *LabelEncoder
}

// Validate reports the first artifact that is not set.
func (a *Artifacts) Validate() error {
	switch {
	case a == nil:
		return errors.New("artifacts not loaded")
	case a.CompetitionDistance == nil:
		return errors.New("competition distance scaler missing")
	case a.CompetitionTimeMonth == nil:
		return errors.New("competition time month scaler missing")
	case a.PromoTimeWeek == nil:
		return errors.New("promo time week scaler missing")
	case a.Year == nil:
		return errors.New("year scaler missing")
	case a.StoreType == nil:
		return errors.New("store type encoder missing")
	}
	return nil
}

// LoadArtifacts reads the five transformer files from dir.
func LoadArtifacts(dir string, logger *slog.Logger) (*Artifacts, error) {
	if dir == "" {
		return nil, errors.New("artifacts directory not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		a   Artifacts
		err error
	)
	scalers := []struct {
		file string
		dst  *Scaler
	}{
		{CompetitionDistanceFile, &a.CompetitionDistance},
		{CompetitionTimeMonthFile, &a.CompetitionTimeMonth},
		{PromoTimeWeekFile, &a.PromoTimeWeek},
		{YearFile, &a.Year},
	}
	for _, s := range scalers {
		var spec ScalerSpec
		if err := readYAML(filepath.Join(dir, s.file), &spec); err != nil {
			return nil, err
		}
		if *s.dst, err = NewScaler(spec); err != nil {
			return nil, fmt.Errorf("%s: %w", s.file, err)
		}
		logger.Debug("loaded scaler", slog.String("file", s.file), slog.String("kind", spec.Kind))
	}

	var enc LabelEncoderSpec
	if err := readYAML(filepath.Join(dir, StoreTypeFile), &enc); err != nil {
		return nil, err
	}
	if a.StoreType, err = NewLabelEncoder(enc.Classes); err != nil {
		return nil, fmt.Errorf("%s: %w", StoreTypeFile, err)
	}
	logger.Debug("loaded label encoder", slog.String("file", StoreTypeFile), slog.Int("classes", len(enc.Classes)))

	return &a, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}
