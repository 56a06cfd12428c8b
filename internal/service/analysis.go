package service

import (
	"context"

	"github.com/vitalsense/mlserve/internal/features"
	"github.com/vitalsense/mlserve/internal/inference"
	"github.com/vitalsense/mlserve/internal/model"
)

// Analysis is the service abstraction for running predictions against named
// models: it assembles the feature vector, resolves the latest model version
// and dispatches the prediction.
type Analysis struct {
	pipeline *inference.Pipeline
	schemas  *features.Schemas
}

// NewAnalysis creates a new analysis service.
func NewAnalysis(pipeline *inference.Pipeline, schemas *features.Schemas) *Analysis {
	return &Analysis{
		pipeline: pipeline,
		schemas:  schemas,
	}
}

// Analyze runs a single prediction for modelName over a raw feature payload.
// The latest active model version is used; it is loaded into the cache on
// first use.
func (a *Analysis) Analyze(ctx context.Context, modelName string, raw map[string]any) (*model.Prediction, error) {
	vector, err := a.schemas.Vector(modelName, raw)
	if err != nil {
		return nil, err
	}

	modelID, err := a.pipeline.Prepare(ctx, modelName, "")
	if err != nil {
		return nil, err
	}

	return a.pipeline.Predict(modelID, vector)
}

// AnalyzeBatch runs predictions for modelName over several raw payloads. Any
// invalid payload fails the whole batch before inference starts.
func (a *Analysis) AnalyzeBatch(ctx context.Context, modelName string, raws []map[string]any) ([]*model.Prediction, error) {
	vectors := make([][]float64, len(raws))
	for i, raw := range raws {
		vector, err := a.schemas.Vector(modelName, raw)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}

	modelID, err := a.pipeline.Prepare(ctx, modelName, "")
	if err != nil {
		return nil, err
	}

	return a.pipeline.BatchPredict(modelID, vectors)
}
