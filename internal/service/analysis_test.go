package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/mlserve/internal/features"
	"github.com/vitalsense/mlserve/internal/inference"
	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/persistence"
	"github.com/vitalsense/mlserve/internal/predictor"
)

func newTestAnalysis(t *testing.T) (*Analysis, *persistence.Manager) {
	t.Helper()

	base := t.TempDir()
	manager, err := persistence.NewManager(base, filepath.Join(base, "backups"))
	require.NoError(t, err)

	schemas := features.NewSchemas(map[string][]string{
		"risk_score": {"age", "bmi"},
	})
	return NewAnalysis(inference.NewPipeline(manager), schemas), manager
}

func TestAnalysis_AnalyzeEndToEnd(t *testing.T) {
	analysis, manager := newTestAnalysis(t)
	ctx := context.Background()

	_, err := manager.Save(ctx, &predictor.LinearRegressor{
		Weights:   []float64{0.1, 0.2},
		Intercept: 1,
	}, "risk_score", "1.0", nil, nil)
	require.NoError(t, err)

	result, err := analysis.Analyze(ctx, "risk_score", map[string]any{
		"age": 40,
		"bmi": 25.0,
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, result.Prediction[0], 1e-9)
	assert.Equal(t, "risk_score", result.ModelName)
}

func TestAnalysis_AnalyzeUnknownModelName(t *testing.T) {
	analysis, _ := newTestAnalysis(t)

	_, err := analysis.Analyze(context.Background(), "ghost", map[string]any{"x": 1})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestAnalysis_AnalyzeNoSavedVersions(t *testing.T) {
	analysis, _ := newTestAnalysis(t)

	_, err := analysis.Analyze(context.Background(), "risk_score", map[string]any{
		"age": 40,
		"bmi": 25.0,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAnalysis_AnalyzeMissingFeature(t *testing.T) {
	analysis, manager := newTestAnalysis(t)
	ctx := context.Background()

	_, err := manager.Save(ctx, &predictor.LinearRegressor{Weights: []float64{1, 1}}, "risk_score", "1.0", nil, nil)
	require.NoError(t, err)

	_, err = analysis.Analyze(ctx, "risk_score", map[string]any{"age": 40})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAnalysis_AnalyzeBatch(t *testing.T) {
	analysis, manager := newTestAnalysis(t)
	ctx := context.Background()

	_, err := manager.Save(ctx, &predictor.LinearRegressor{Weights: []float64{1, 1}}, "risk_score", "1.0", nil, nil)
	require.NoError(t, err)

	results, err := analysis.AnalyzeBatch(ctx, "risk_score", []map[string]any{
		{"age": 1, "bmi": 2.0},
		{"age": 3, "bmi": 4.0},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float64{3}, results[0].Prediction)
	assert.Equal(t, []float64{7}, results[1].Prediction)
}

func TestAnalysis_AnalyzeBatchRejectsInvalidPayload(t *testing.T) {
	analysis, manager := newTestAnalysis(t)
	ctx := context.Background()

	_, err := manager.Save(ctx, &predictor.LinearRegressor{Weights: []float64{1, 1}}, "risk_score", "1.0", nil, nil)
	require.NoError(t, err)

	_, err = analysis.AnalyzeBatch(ctx, "risk_score", []map[string]any{
		{"age": 1, "bmi": 2.0},
		{"age": 1},
	})
	assert.ErrorIs(t, err, model.ErrValidation)
}
