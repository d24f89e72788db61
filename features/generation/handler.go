package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"copyforge/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Brief     string   `json:"brief"`
	BrandTone string   `json:"brand_tone"`
	Audience  string   `json:"audience"`
	Objective string   `json:"objective"`
	Channels  []string `json:"channels"`
}

// Create accepts a generation job and returns its id for polling.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	if projectID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "project id is required", http.StatusBadRequest)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Brief) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "brief is required", http.StatusBadRequest)
		return
	}

	g, err := h.service.Generate(r.Context(), &Generation{
		ProjectID: projectID,
		Brief:     req.Brief,
		BrandTone: req.BrandTone,
		Audience:  req.Audience,
		Objective: req.Objective,
		Channels:  req.Channels,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to schedule generation", "error", err, "project_id", projectID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]string{
		"generation_id": g.ID,
		"status":        g.Status,
	}}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	g, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Generation not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to get generation", "error", err, "generation_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": g}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")

	generations, err := h.service.List(r.Context(), projectID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list generations", "error", err, "project_id", projectID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if generations == nil {
		generations = []Generation{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": generations,
		"meta": map[string]int{"count": len(generations)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Update edits the content of a completed generation in place.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var update ContentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}

	g, err := h.service.UpdateContent(r.Context(), id, update)
	switch {
	case errors.Is(err, ErrNotEditable):
		h.writeError(r.Context(), w, "CONFLICT", "Generation has not completed", http.StatusConflict)
		return
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(r.Context(), w, "NOT_FOUND", "Generation not found", http.StatusNotFound)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "failed to update generation", "error", err, "generation_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": g}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
