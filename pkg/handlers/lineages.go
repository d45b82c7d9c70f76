package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

// ExpandLineagesRequest carries the patterns to expand for one pathogen.
type ExpandLineagesRequest struct {
	Pathogen string   `json:"pathogen"`
	Patterns []string `json:"patterns"`
}

// ExpandLineagesResponse lists the concrete lineages the patterns cover.
type ExpandLineagesResponse struct {
	Lineages []string `json:"lineages"`
}

// LineagesHandler handles lineage expansion HTTP requests.
type LineagesHandler struct {
	lineageService  *services.LineageService
	pathogenService services.PathogenService
	logger          *zap.Logger
}

// NewLineagesHandler creates a new lineages handler.
func NewLineagesHandler(lineageService *services.LineageService, pathogenService services.PathogenService, logger *zap.Logger) *LineagesHandler {
	return &LineagesHandler{
		lineageService:  lineageService,
		pathogenService: pathogenService,
		logger:          logger,
	}
}

// RegisterRoutes registers the lineages handler's routes on the given mux.
func (h *LineagesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware AuthMiddleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("POST /v2/lineages/expand", scopeMiddleware(authMiddleware(h.Expand)))
}

// Expand handles POST /v2/lineages/expand.
func (h *LineagesHandler) Expand(w http.ResponseWriter, r *http.Request) {
	var req ExpandLineagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}
	if req.Pathogen == "" {
		h.writeError(w, http.StatusBadRequest, "missing_pathogen", "Pathogen slug required")
		return
	}

	known, err := h.pathogenService.KnownLineages(r.Context(), req.Pathogen)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Unknown pathogen")
			return
		}
		h.logger.Error("Failed to load known lineages",
			zap.String("pathogen", req.Pathogen),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to expand lineages")
		return
	}

	expanded := h.lineageService.Expand(known, req.Patterns)

	if err := JSONResponse(w, http.StatusOK, ExpandLineagesResponse{Lineages: expanded}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *LineagesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
