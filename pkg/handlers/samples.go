package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/auth"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

// AuthMiddleware wraps a handler with authentication.
type AuthMiddleware func(http.HandlerFunc) http.HandlerFunc

// ScopeMiddleware wraps a handler with a request database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ValidateIDsRequest asks which of the submitted sample identifiers resolve
// to something the caller can see.
type ValidateIDsRequest struct {
	SampleIDs  []string `json:"sample_ids"`
	Pathogen   string   `json:"pathogen"`
	Repository string   `json:"repository,omitempty"`
}

// ValidateIDsResponse reports identifiers that matched nothing visible.
// Identifiers are echoed back exactly as submitted.
type ValidateIDsResponse struct {
	MissingSampleIDs []string `json:"missing_sample_ids"`
}

// SamplesHandler handles sample-related HTTP requests.
type SamplesHandler struct {
	accessService    services.SampleAccessService
	reconcileService services.ReconcileService
	pathogenService  services.PathogenService
	logger           *zap.Logger
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(accessService services.SampleAccessService, reconcileService services.ReconcileService, pathogenService services.PathogenService, logger *zap.Logger) *SamplesHandler {
	return &SamplesHandler{
		accessService:    accessService,
		reconcileService: reconcileService,
		pathogenService:  pathogenService,
		logger:           logger,
	}
}

// RegisterRoutes registers the samples handler's routes on the given mux.
func (h *SamplesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware AuthMiddleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("POST /v2/samples/validate_ids", scopeMiddleware(authMiddleware(h.ValidateIDs)))
}

// ValidateIDs handles POST /v2/samples/validate_ids.
// Applies the visibility filter to the submitted identifiers, then checks
// the leftovers against external repository strain metadata; whatever
// remains is reported missing.
func (h *SamplesHandler) ValidateIDs(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req ValidateIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}
	if req.Pathogen == "" {
		h.writeError(w, http.StatusBadRequest, "missing_pathogen", "Pathogen slug required")
		return
	}

	requested := make(map[string]bool, len(req.SampleIDs))
	for _, id := range req.SampleIDs {
		if id != "" {
			requested[id] = true
		}
	}

	requestedList := make([]string, 0, len(requested))
	for id := range requested {
		requestedList = append(requestedList, id)
	}

	visible, err := h.accessService.FilterVisibleSamples(r.Context(), requestedList, user)
	if err != nil {
		h.logger.Error("Failed to filter visible samples", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to validate identifiers")
		return
	}

	_, missing := services.ReconcileIdentifiers(requested, visible)

	if len(missing) > 0 && req.Repository != "" {
		pathogen, repository, err := h.pathogenService.GetPathogenAndRepository(r.Context(), req.Pathogen, req.Repository)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				h.writeError(w, http.StatusNotFound, "not_found", "Unknown pathogen or repository")
				return
			}
			h.logger.Error("Failed to resolve pathogen/repository",
				zap.String("pathogen", req.Pathogen),
				zap.String("repository", req.Repository),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to validate identifiers")
			return
		}

		matched, err := h.reconcileService.MatchRepositoryStrains(r.Context(), missing, pathogen, repository)
		if err != nil {
			h.logger.Error("Failed to match repository strains", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to validate identifiers")
			return
		}
		for id := range matched {
			delete(missing, id)
		}
	}

	missingList := make([]string, 0, len(missing))
	for id := range missing {
		missingList = append(missingList, id)
	}
	sort.Strings(missingList)

	if err := JSONResponse(w, http.StatusOK, ValidateIDsResponse{MissingSampleIDs: missingList}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *SamplesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
