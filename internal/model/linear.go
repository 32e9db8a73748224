// Package model holds locally evaluated sales models.
package model

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-forecast/internal/models"
)

// LinearSpec is the on-disk form of a linear regression over the feature
// columns.
type LinearSpec struct {
	Name         string             `yaml:"name"`
	Intercept    float64            `yaml:"intercept"`
	Coefficients map[string]float64 `yaml:"coefficients"`
}

// Linear predicts X·w + b on the log1p sales scale.
type Linear struct {
	name      string
	intercept float64
	weights   *mat.VecDense
}

// NewLinear orders the coefficients by models.FeatureColumns. Every feature
// needs a coefficient and unknown names are rejected.
func NewLinear(spec LinearSpec) (*Linear, error) {
	if len(spec.Coefficients) == 0 {
		return nil, errors.New("linear model has no coefficients")
	}
	weights := make([]float64, len(models.FeatureColumns))
	for i, name := range models.FeatureColumns {
		w, ok := spec.Coefficients[name]
		if !ok {
			return nil, fmt.Errorf("coefficient for %s missing", name)
		}
		weights[i] = w
	}
	if len(spec.Coefficients) != len(models.FeatureColumns) {
		for name := range spec.Coefficients {
			if !isFeature(name) {
				return nil, fmt.Errorf("unknown feature %s", name)
			}
		}
	}
	name := spec.Name
	if name == "" {
		name = "linear"
	}
	return &Linear{
		name:      name,
		intercept: spec.Intercept,
		weights:   mat.NewVecDense(len(weights), weights),
	}, nil
}

// LoadLinear reads a LinearSpec from a YAML file.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var spec LinearSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return NewLinear(spec)
}

// Name identifies the model in logs.
func (m *Linear) Name() string { return m.name }

// Predict implements engine.Model.
func (m *Linear) Predict(ctx context.Context, X mat.Matrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if cols != m.weights.Len() {
		return nil, fmt.Errorf("feature matrix has %d columns, model expects %d", cols, m.weights.Len())
	}
	var out mat.VecDense
	out.MulVec(X, m.weights)
	preds := make([]float64, rows)
	for i := range preds {
		preds[i] = out.AtVec(i) + m.intercept
	}
	return preds, nil
}

func isFeature(name string) bool {
	for _, f := range models.FeatureColumns {
		if f == name {
			return true
		}
	}
	return false
}
