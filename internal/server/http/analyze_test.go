package http

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/mlserve/internal/features"
	"github.com/vitalsense/mlserve/internal/inference"
	"github.com/vitalsense/mlserve/internal/persistence"
	"github.com/vitalsense/mlserve/internal/predictor"
	"github.com/vitalsense/mlserve/internal/service"
)

func newTestServer(t *testing.T) (humatest.TestAPI, *persistence.Manager, *inference.Pipeline) {
	t.Helper()

	base := t.TempDir()
	manager, err := persistence.NewManager(base, filepath.Join(base, "backups"))
	require.NoError(t, err)

	pipeline := inference.NewPipeline(manager)
	schemas := features.NewSchemas(map[string][]string{
		"risk_score": {"age", "bmi"},
	})

	_, api := humatest.New(t)
	NewAnalysisHandler(api, service.NewAnalysis(pipeline, schemas))
	NewRegistryHandler(api, manager)
	NewHealthHandler(api, manager, pipeline)

	return api, manager, pipeline
}

func saveTestModel(t *testing.T, manager *persistence.Manager) string {
	t.Helper()

	id, err := manager.Save(context.Background(), &predictor.LinearRegressor{
		Weights:   []float64{1, 1},
		Intercept: 0,
	}, "risk_score", "1.0", map[string]float64{"rmse": 0.1}, nil)
	require.NoError(t, err)
	return id
}

func TestAnalyzeEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	saveTestModel(t, manager)

	resp := api.Post("/analyze/risk_score", map[string]any{
		"age": 40,
		"bmi": 25.0,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body PredictionDTO
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, []float64{65}, body.Prediction)
	assert.Equal(t, "risk_score", body.ModelName)
}

func TestAnalyzeEndpoint_MissingFeature(t *testing.T) {
	api, manager, _ := newTestServer(t)
	saveTestModel(t, manager)

	resp := api.Post("/analyze/risk_score", map[string]any{"age": 40})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAnalyzeEndpoint_NoModelVersions(t *testing.T) {
	api, _, _ := newTestServer(t)

	resp := api.Post("/analyze/risk_score", map[string]any{"age": 40, "bmi": 25.0})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAnalyzeEndpoint_UnconfiguredModel(t *testing.T) {
	api, _, _ := newTestServer(t)

	resp := api.Post("/analyze/unknown_model", map[string]any{"x": 1})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestAnalyzeBatchEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	saveTestModel(t, manager)

	resp := api.Post("/analyze/risk_score/batch", map[string]any{
		"inputs": []map[string]any{
			{"age": 1, "bmi": 2.0},
			{"age": 3, "bmi": 4.0},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Predictions []PredictionDTO `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Predictions, 2)
	assert.Equal(t, []float64{3}, body.Predictions[0].Prediction)
	assert.Equal(t, []float64{7}, body.Predictions[1].Prediction)
}

func TestListModelsEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	id := saveTestModel(t, manager)

	resp := api.Get("/models?name=risk_score")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Models map[string][]ModelInfoDTO `json:"models"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Models["risk_score"], 1)
	assert.Equal(t, id, body.Models["risk_score"][0].ModelID)
	assert.True(t, body.Models["risk_score"][0].Active)
}

func TestGetModelEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	id := saveTestModel(t, manager)

	resp := api.Get("/models/" + id)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		ModelID   string `json:"model_id"`
		ModelName string `json:"model_name"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, id, body.ModelID)
	assert.Equal(t, "risk_score", body.ModelName)

	resp = api.Get("/models/absent_v1_20200101_000000_deadbeef")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteModelEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	id := saveTestModel(t, manager)

	resp := api.Delete("/models/" + id + "?backup=false")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Get("/models/" + id)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	api, manager, _ := newTestServer(t)
	saveTestModel(t, manager)

	resp := api.Post("/models/risk_score/cleanup?keep=5", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Deleted []string `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Deleted)
}

func TestHealthEndpoint(t *testing.T) {
	api, _, _ := newTestServer(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Status           string `json:"status"`
		StorageReachable bool   `json:"storage_reachable"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.StorageReachable)
}
