package handlers

import (
	"net/http"

	"github.com/longregen/refinery/internal/ports"
)

// ModelsHandler proxies the generation service's model inventory
type ModelsHandler struct {
	client ports.GenerationClient
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(client ports.GenerationClient) *ModelsHandler {
	return &ModelsHandler{client: client}
}

// ModelsResponse lists installed models and which of them are loaded
type ModelsResponse struct {
	Models []ModelInfoResponse   `json:"models"`
	Loaded []LoadedModelResponse `json:"loaded,omitempty"`
}

type ModelInfoResponse struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	ParameterSize string `json:"parameter_size,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
}

type LoadedModelResponse struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeVRAM int64  `json:"size_vram"`
}

// ListModels handles GET /api/v1/models
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	infos, err := h.client.ListModels(r.Context())
	if err != nil {
		respondError(w, "service_unavailable", "Generation service unreachable", http.StatusServiceUnavailable)
		return
	}

	response := &ModelsResponse{
		Models: make([]ModelInfoResponse, len(infos)),
	}
	for i, m := range infos {
		response.Models[i] = ModelInfoResponse{
			Name:          m.Name,
			Size:          m.Size,
			ParameterSize: m.ParameterSize,
			Quantization:  m.Quantization,
		}
	}

	// Loaded models are best effort; an error leaves the list empty
	if loaded, err := h.client.LoadedModels(r.Context()); err == nil {
		response.Loaded = make([]LoadedModelResponse, len(loaded))
		for i, m := range loaded {
			response.Loaded[i] = LoadedModelResponse{
				Name:     m.Name,
				Size:     m.Size,
				SizeVRAM: m.SizeVRAM,
			}
		}
	}

	respondJSON(w, response, http.StatusOK)
}
