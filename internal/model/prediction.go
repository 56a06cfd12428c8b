package model

import "time"

// Prediction is the result of a single inference call. Prediction is always
// a materialized slice, never a live tensor reference; scalar outputs are
// wrapped into a one-element sequence. Probabilities is nil for model types
// that do not produce them.
type Prediction struct {
	ModelID       string      `json:"model_id"`
	ModelName     string      `json:"model_name"`
	ModelVersion  string      `json:"model_version"`
	Prediction    []float64   `json:"prediction"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}
