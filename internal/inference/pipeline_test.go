package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/predictor"
)

// fakeLoader serves models from memory and counts loads.
type fakeLoader struct {
	models map[string]any
	meta   map[string]*model.Metadata
	latest map[string]string
	loads  int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		models: make(map[string]any),
		meta:   make(map[string]*model.Metadata),
		latest: make(map[string]string),
	}
}

func (f *fakeLoader) add(meta *model.Metadata, mdl any) {
	f.models[meta.ModelID] = mdl
	f.meta[meta.ModelID] = meta
	f.latest[meta.ModelName] = meta.ModelID
}

func (f *fakeLoader) Load(_ context.Context, modelID string) (any, *model.Metadata, error) {
	mdl, ok := f.models[modelID]
	if !ok {
		return nil, nil, model.ErrNotFound
	}
	f.loads++
	return mdl, f.meta[modelID], nil
}

func (f *fakeLoader) LoadLatest(ctx context.Context, name string) (any, *model.Metadata, error) {
	id, ok := f.latest[name]
	if !ok {
		return nil, nil, model.ErrNotFound
	}
	return f.Load(ctx, id)
}

type scalarOnly struct{}

func (scalarOnly) PredictScalar(input []float64) (float64, error) {
	sum := 0.0
	for _, v := range input {
		sum += v
	}
	return sum, nil
}

type noCapability struct{}

func metaFor(name, id string, typ model.ModelType) *model.Metadata {
	return &model.Metadata{
		ModelID:   id,
		ModelName: name,
		ModelType: typ,
		Version:   "1.0",
	}
}

func TestPipeline_PredictBeforePrepare(t *testing.T) {
	p := NewPipeline(newFakeLoader())

	_, err := p.Predict("unprepared", []float64{1})
	assert.ErrorIs(t, err, model.ErrNotLoaded)
}

func TestPipeline_PrepareByIDThenPredict(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{2, 3}, Intercept: 1})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)
	assert.Equal(t, "risk_score_v1", id)

	result, err := p.Predict(id, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, result.Prediction)
	assert.Equal(t, "risk_score", result.ModelName)
	assert.Equal(t, "1.0", result.ModelVersion)
	assert.False(t, result.Timestamp.IsZero())
}

func TestPipeline_PrepareEmptyIDResolvesLatest(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v2", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{1}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "")
	require.NoError(t, err)
	assert.Equal(t, "risk_score_v2", id)
}

func TestPipeline_PrepareUnknownModel(t *testing.T) {
	p := NewPipeline(newFakeLoader())

	_, err := p.Prepare(context.Background(), "ghost", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPipeline_CacheAvoidsReload(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{1, 1}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)

	for range 3 {
		_, err := p.Predict(id, []float64{1, 2})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loader.loads)
}

func TestPipeline_PredictValidatesInputLength(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{1, 2, 3}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)

	_, err = p.Predict(id, []float64{1, 2})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPipeline_ClassifierAttachesProbabilities(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("churn", "churn_v1", model.ModelTypeSklearnLike),
		&predictor.LogisticClassifier{Weights: []float64{1, 1}, Intercept: 0})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "churn", "churn_v1")
	require.NoError(t, err)

	result, err := p.Predict(id, []float64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, result.Prediction)
	require.Len(t, result.Probabilities, 1)
	require.Len(t, result.Probabilities[0], 2)
	assert.InDelta(t, 1.0, result.Probabilities[0][0]+result.Probabilities[0][1], 1e-9)
}

func TestPipeline_RegressorHasNoProbabilities(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{1}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)

	result, err := p.Predict(id, []float64{1})
	require.NoError(t, err)
	assert.Nil(t, result.Probabilities)
}

func TestPipeline_ScalarResultIsWrapped(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("custom", "custom_v1", model.ModelTypeCustom), scalarOnly{})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "custom", "custom_v1")
	require.NoError(t, err)

	result, err := p.Predict(id, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, result.Prediction)
}

func TestPipeline_CustomWithoutPredictCapability(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("custom", "custom_v1", model.ModelTypeCustom), noCapability{})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "custom", "custom_v1")
	require.NoError(t, err)

	_, err = p.Predict(id, []float64{1})
	assert.ErrorIs(t, err, model.ErrUnsupported)
}

func TestPipeline_TensorNetworkForward(t *testing.T) {
	loader := newFakeLoader()
	net := &predictor.Network{
		Layers: []predictor.Layer{
			{Weights: [][]float64{{1, 0}, {0, 1}}, Biases: []float64{0, 0}},
			{Weights: [][]float64{{1, 1}}, Biases: []float64{0.5}},
		},
	}
	loader.add(metaFor("sleep_quality", "sleep_v1", model.ModelTypeTensorNetwork), net)
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "sleep_quality", "sleep_v1")
	require.NoError(t, err)

	result, err := p.Predict(id, []float64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{5.5}, result.Prediction)
}

func TestPipeline_BatchPredict(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{2}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)

	results, err := p.BatchPredict(id, [][]float64{{1}, {2}, {3}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []float64{2}, results[0].Prediction)
	assert.Equal(t, []float64{4}, results[1].Prediction)
	assert.Equal(t, []float64{6}, results[2].Prediction)
}

func TestPipeline_BatchPredictAbortsOnFailure(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("risk_score", "risk_score_v1", model.ModelTypeSklearnLike),
		&predictor.LinearRegressor{Weights: []float64{2}})
	p := NewPipeline(loader)

	id, err := p.Prepare(context.Background(), "risk_score", "risk_score_v1")
	require.NoError(t, err)

	_, err = p.BatchPredict(id, [][]float64{{1}, {1, 2}, {3}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPipeline_UnloadAndClear(t *testing.T) {
	loader := newFakeLoader()
	loader.add(metaFor("a", "a_v1", model.ModelTypeSklearnLike), &predictor.LinearRegressor{Weights: []float64{1}})
	loader.add(metaFor("b", "b_v1", model.ModelTypeSklearnLike), &predictor.LinearRegressor{Weights: []float64{1}})
	p := NewPipeline(loader)

	_, err := p.Prepare(context.Background(), "a", "a_v1")
	require.NoError(t, err)
	_, err = p.Prepare(context.Background(), "b", "b_v1")
	require.NoError(t, err)
	assert.Len(t, p.Loaded(), 2)

	p.Unload("a_v1")
	assert.Equal(t, []string{"b_v1"}, p.Loaded())

	// Unloading an absent model is a no-op.
	p.Unload("a_v1")
	assert.Len(t, p.Loaded(), 1)

	p.Clear()
	assert.Empty(t, p.Loaded())

	_, err = p.Predict("b_v1", []float64{1})
	assert.ErrorIs(t, err, model.ErrNotLoaded)
}
