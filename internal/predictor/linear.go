package predictor

import (
	"fmt"
	"math"

	"github.com/vitalsense/mlserve/internal/model"
)

// LinearRegressor is a fitted linear model: y = w·x + b.
type LinearRegressor struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// InputDim returns the expected feature vector length.
func (m *LinearRegressor) InputDim() int {
	return len(m.Weights)
}

// Predict returns the regression output as a one-element sequence.
func (m *LinearRegressor) Predict(input []float64) ([]float64, error) {
	y, err := dot(m.Weights, input)
	if err != nil {
		return nil, err
	}
	return []float64{y + m.Intercept}, nil
}

// Params exposes the fitted parameters.
func (m *LinearRegressor) Params() map[string]any {
	return map[string]any{
		"weights":   m.Weights,
		"intercept": m.Intercept,
	}
}

// LogisticClassifier is a fitted binary classifier with sigmoid output.
type LogisticClassifier struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Threshold float64   `json:"threshold,omitempty"`
}

// InputDim returns the expected feature vector length.
func (m *LogisticClassifier) InputDim() int {
	return len(m.Weights)
}

// Predict returns the predicted class label (0 or 1) as a one-element sequence.
func (m *LogisticClassifier) Predict(input []float64) ([]float64, error) {
	p, err := m.probability(input)
	if err != nil {
		return nil, err
	}
	threshold := m.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	if p >= threshold {
		return []float64{1}, nil
	}
	return []float64{0}, nil
}

// PredictProbabilities returns per-class probabilities for a single sample
// as a 1xN nested sequence.
func (m *LogisticClassifier) PredictProbabilities(input []float64) ([][]float64, error) {
	p, err := m.probability(input)
	if err != nil {
		return nil, err
	}
	return [][]float64{{1 - p, p}}, nil
}

// Params exposes the fitted parameters.
func (m *LogisticClassifier) Params() map[string]any {
	return map[string]any{
		"weights":   m.Weights,
		"intercept": m.Intercept,
		"threshold": m.Threshold,
	}
}

func (m *LogisticClassifier) probability(input []float64) (float64, error) {
	z, err := dot(m.Weights, input)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-(z + m.Intercept))), nil
}

func dot(weights, input []float64) (float64, error) {
	if len(input) != len(weights) {
		return 0, fmt.Errorf("%w: expected %d features, got %d", model.ErrValidation, len(weights), len(input))
	}
	var sum float64
	for i, w := range weights {
		sum += w * input[i]
	}
	return sum, nil
}
