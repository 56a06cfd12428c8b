package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/vitalsense/mlserve/internal/inference"
	"github.com/vitalsense/mlserve/internal/persistence"
)

type (
	HealthOutput struct {
		Body struct {
			Status            string   `json:"status"`
			StorageReachable  bool     `json:"storage_reachable"`
			LoadedModels      []string `json:"loaded_models"`
			MemoryUsedPercent float64  `json:"memory_used_percent"`
		}
	}
)

// HealthHandler handles HTTP requests for service health.
type HealthHandler struct {
	manager  *persistence.Manager
	pipeline *inference.Pipeline
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(api huma.API, manager *persistence.Manager, pipeline *inference.Pipeline) *HealthHandler {
	h := &HealthHandler{manager: manager, pipeline: pipeline}

	huma.Register(api, huma.Operation{
		OperationID:   "health",
		Method:        "GET",
		Path:          "/health",
		Summary:       "Report service health",
		Tags:          []string{"health"},
		DefaultStatus: http.StatusOK,
	}, h.handleHealth)

	return h
}

// handleHealth handles the health operation.
func (h *HealthHandler) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	out.Body.StorageReachable = true
	out.Body.LoadedModels = h.pipeline.Loaded()

	if err := h.manager.Ping(); err != nil {
		out.Body.Status = "degraded"
		out.Body.StorageReachable = false
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.Body.MemoryUsedPercent = vm.UsedPercent
	}

	return out, nil
}
