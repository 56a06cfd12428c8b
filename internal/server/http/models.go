package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vitalsense/mlserve/internal/model"
	"github.com/vitalsense/mlserve/internal/persistence"
)

type (
	ModelInfoDTO struct {
		ModelID      string             `json:"model_id"`
		Version      string             `json:"version"`
		TrainingDate string             `json:"training_date"`
		Metrics      map[string]float64 `json:"performance_metrics,omitempty"`
		Active       bool               `json:"active"`
	}

	ListModelsInput struct {
		Name string `query:"name" doc:"Limit the listing to one model name"`
	}

	ListModelsOutput struct {
		Body struct {
			Models map[string][]ModelInfoDTO `json:"models"`
		}
	}

	ModelDetailInput struct {
		ModelID string `path:"model_id" minLength:"1"`
	}

	ModelDetailOutput struct {
		Body struct {
			ModelID   string          `json:"model_id"`
			ModelName string          `json:"model_name"`
			Info      ModelInfoDTO    `json:"info"`
			Metadata  *model.Metadata `json:"metadata,omitempty"`
		}
	}

	DeleteModelInput struct {
		ModelID string `path:"model_id" minLength:"1"`
		Backup  bool   `query:"backup" default:"true" doc:"Back up artifacts before deleting"`
	}

	DeleteModelOutput struct {
		Body struct {
			Deleted string `json:"deleted"`
		}
	}

	CleanupInput struct {
		ModelName string `path:"model_name" minLength:"1"`
		Keep      int    `query:"keep" default:"5" minimum:"1" doc:"Number of most recent versions to keep"`
	}

	CleanupOutput struct {
		Body struct {
			Deleted []string `json:"deleted"`
		}
	}
)

// RegistryHandler handles HTTP requests for the model registry.
type RegistryHandler struct {
	manager *persistence.Manager
}

// NewRegistryHandler creates a new RegistryHandler instance.
func NewRegistryHandler(api huma.API, manager *persistence.Manager) *RegistryHandler {
	h := &RegistryHandler{manager: manager}

	huma.Register(api, huma.Operation{
		OperationID:   "list-models",
		Method:        "GET",
		Path:          "/models",
		Summary:       "List registered model versions",
		Tags:          []string{"registry"},
		DefaultStatus: http.StatusOK,
	}, h.handleList)

	huma.Register(api, huma.Operation{
		OperationID:   "get-model",
		Method:        "GET",
		Path:          "/models/{model_id}",
		Summary:       "Get registry entry and metadata for a model version",
		Tags:          []string{"registry"},
		DefaultStatus: http.StatusOK,
	}, h.handleDetail)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-model",
		Method:        "DELETE",
		Path:          "/models/{model_id}",
		Summary:       "Delete a model version, optionally backing it up first",
		Tags:          []string{"registry"},
		DefaultStatus: http.StatusOK,
	}, h.handleDelete)

	huma.Register(api, huma.Operation{
		OperationID:   "cleanup-models",
		Method:        "POST",
		Path:          "/models/{model_name}/cleanup",
		Summary:       "Delete old versions of a model, keeping the most recent",
		Tags:          []string{"registry"},
		DefaultStatus: http.StatusOK,
	}, h.handleCleanup)

	return h
}

// handleList handles the list-models operation.
func (h *RegistryHandler) handleList(ctx context.Context, input *ListModelsInput) (*ListModelsOutput, error) {
	listing := h.manager.List(input.Name)

	out := &ListModelsOutput{}
	out.Body.Models = make(map[string][]ModelInfoDTO, len(listing))
	for name, infos := range listing {
		dtos := make([]ModelInfoDTO, len(infos))
		for i, info := range infos {
			dtos[i] = modelInfoDTO(info)
		}
		out.Body.Models[name] = dtos
	}
	return out, nil
}

// handleDetail handles the get-model operation.
func (h *RegistryHandler) handleDetail(ctx context.Context, input *ModelDetailInput) (*ModelDetailOutput, error) {
	detail, err := h.manager.Info(input.ModelID)
	if err != nil {
		return nil, registryError(err)
	}

	out := &ModelDetailOutput{}
	out.Body.ModelID = detail.ModelID
	out.Body.ModelName = detail.ModelName
	out.Body.Info = modelInfoDTO(persistence.ModelInfo{ModelID: detail.ModelID, Entry: detail.Entry})
	out.Body.Metadata = detail.Metadata
	return out, nil
}

// handleDelete handles the delete-model operation.
func (h *RegistryHandler) handleDelete(ctx context.Context, input *DeleteModelInput) (*DeleteModelOutput, error) {
	if err := h.manager.Delete(ctx, input.ModelID, input.Backup); err != nil {
		return nil, registryError(err)
	}

	out := &DeleteModelOutput{}
	out.Body.Deleted = input.ModelID
	return out, nil
}

// handleCleanup handles the cleanup-models operation.
func (h *RegistryHandler) handleCleanup(ctx context.Context, input *CleanupInput) (*CleanupOutput, error) {
	deleted, err := h.manager.Cleanup(ctx, input.ModelName, input.Keep)
	if err != nil {
		return nil, registryError(err)
	}

	out := &CleanupOutput{}
	out.Body.Deleted = deleted
	if deleted == nil {
		out.Body.Deleted = []string{}
	}
	return out, nil
}

func modelInfoDTO(info persistence.ModelInfo) ModelInfoDTO {
	return ModelInfoDTO{
		ModelID:      info.ModelID,
		Version:      info.Version,
		TrainingDate: info.TrainingDate,
		Metrics:      info.PerformanceMetrics,
		Active:       info.Active,
	}
}

func registryError(err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return huma.Error404NotFound("model not found", err)
	case errors.Is(err, model.ErrValidation):
		return huma.Error400BadRequest("invalid request", err)
	default:
		slog.Error("Registry operation failed", "error", err)
		return huma.Error500InternalServerError("registry operation failed")
	}
}
