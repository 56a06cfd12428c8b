package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/service"
)

type (
	PredictionDTO struct {
		ModelID       string      `json:"model_id"`
		ModelName     string      `json:"model_name"`
		ModelVersion  string      `json:"model_version"`
		Prediction    []float64   `json:"prediction"`
		Probabilities [][]float64 `json:"probabilities,omitempty"`
		Timestamp     time.Time   `json:"timestamp"`
	}

	AnalyzeInput struct {
		ModelName string         `path:"model_name" minLength:"1"`
		Body      map[string]any `doc:"Raw feature payload; keys may be camelCase or snake_case"`
	}

	AnalyzeOutput struct {
		Body PredictionDTO
	}

	AnalyzeBatchInput struct {
		ModelName string `path:"model_name" minLength:"1"`
		Body      struct {
			Inputs []map[string]any `json:"inputs" minItems:"1"`
		}
	}

	AnalyzeBatchOutput struct {
		Body struct {
			Predictions []PredictionDTO `json:"predictions"`
		}
	}
)

// AnalysisHandler handles HTTP requests for model inference.
type AnalysisHandler struct {
	service *service.Analysis
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
func NewAnalysisHandler(api huma.API, service *service.Analysis) *AnalysisHandler {
	h := &AnalysisHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "analyze",
		Method:        "POST",
		Path:          "/analyze/{model_name}",
		Summary:       "Run a prediction with the latest active model version",
		Tags:          []string{"analysis"},
		DefaultStatus: http.StatusOK,
	}, h.handleAnalyze)

	huma.Register(api, huma.Operation{
		OperationID:   "analyze-batch",
		Method:        "POST",
		Path:          "/analyze/{model_name}/batch",
		Summary:       "Run predictions over a batch of feature payloads",
		Tags:          []string{"analysis"},
		DefaultStatus: http.StatusOK,
	}, h.handleAnalyzeBatch)

	return h
}

// handleAnalyze handles the analyze operation.
func (h *AnalysisHandler) handleAnalyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	prediction, err := h.service.Analyze(ctx, input.ModelName, input.Body)
	if err != nil {
		return nil, analysisError(input.ModelName, err)
	}

	return &AnalyzeOutput{Body: predictionDTO(prediction)}, nil
}

// handleAnalyzeBatch handles the analyze-batch operation.
func (h *AnalysisHandler) handleAnalyzeBatch(ctx context.Context, input *AnalyzeBatchInput) (*AnalyzeBatchOutput, error) {
	predictions, err := h.service.AnalyzeBatch(ctx, input.ModelName, input.Body.Inputs)
	if err != nil {
		return nil, analysisError(input.ModelName, err)
	}

	out := &AnalyzeBatchOutput{}
	out.Body.Predictions = make([]PredictionDTO, len(predictions))
	for i, p := range predictions {
		out.Body.Predictions[i] = predictionDTO(p)
	}
	return out, nil
}

func predictionDTO(p *model.Prediction) PredictionDTO {
	return PredictionDTO{
		ModelID:       p.ModelID,
		ModelName:     p.ModelName,
		ModelVersion:  p.ModelVersion,
		Prediction:    p.Prediction,
		Probabilities: p.Probabilities,
		Timestamp:     p.Timestamp,
	}
}

// analysisError maps domain errors to HTTP status codes. Internal failures
// are logged with detail but surfaced opaquely.
func analysisError(modelName string, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return huma.Error400BadRequest("invalid input", err)
	case errors.Is(err, model.ErrNotFound):
		return huma.Error404NotFound("model not found", err)
	case errors.Is(err, model.ErrConfiguration):
		return huma.Error500InternalServerError("model is not configured for analysis", err)
	default:
		slog.Error("Analysis failed", "model_name", modelName, "error", err)
		return huma.Error500InternalServerError("analysis failed")
	}
}
