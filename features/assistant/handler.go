package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type queryRequest struct {
	ProjectID        string `json:"project_id"`
	Question         string `json:"question"`
	TopK             int    `json:"top_k"`
	IncludeCitations *bool  `json:"include_citations"`
}

// Query answers a project question synchronously.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "project_id is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question is required", http.StatusBadRequest)
		return
	}

	includeCitations := true
	if req.IncludeCitations != nil {
		includeCitations = *req.IncludeCitations
	}

	answer, err := h.service.Answer(r.Context(), req.ProjectID, req.Question, req.TopK, includeCitations)
	if err != nil {
		if errors.Is(err, llm.ErrProvider) {
			slog.ErrorContext(r.Context(), "assistant provider failure", "error", err, "project_id", req.ProjectID)
			h.writeError(r.Context(), w, "PROVIDER_ERROR", "Language model is unavailable", http.StatusBadGateway)
			return
		}
		slog.ErrorContext(r.Context(), "assistant query failed", "error", err, "project_id", req.ProjectID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": answer}); err != nil {
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
