package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/auth"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/services"
)

// PhyloTreeResponse describes a run's tree output.
type PhyloTreeResponse struct {
	EntityID int64  `json:"entity_id"`
	Name     string `json:"name,omitempty"`
	S3Bucket string `json:"s3_bucket"`
	S3Key    string `json:"s3_key"`
}

// PhyloRunResponse describes one phylo run. Tree is present only for
// completed runs with a resolved tree output.
type PhyloRunResponse struct {
	ID               int64              `json:"id"`
	Status           string             `json:"workflow_status"`
	StartDatetime    time.Time          `json:"start_datetime"`
	EndDatetime      *time.Time         `json:"end_datetime,omitempty"`
	GroupID          int64              `json:"group_id"`
	PathogenID       int64              `json:"pathogen_id"`
	TreeType         string             `json:"tree_type"`
	Name             string             `json:"name,omitempty"`
	Tree             *PhyloTreeResponse `json:"tree,omitempty"`
}

// PhyloRunsListResponse wraps the run list.
type PhyloRunsListResponse struct {
	PhyloRuns []PhyloRunResponse `json:"phylo_runs"`
}

// PhyloHandler handles phylo run HTTP requests.
type PhyloHandler struct {
	phyloService services.PhyloService
	logger       *zap.Logger
}

// NewPhyloHandler creates a new phylo handler.
func NewPhyloHandler(phyloService services.PhyloService, logger *zap.Logger) *PhyloHandler {
	return &PhyloHandler{
		phyloService: phyloService,
		logger:       logger,
	}
}

// RegisterRoutes registers the phylo handler's routes on the given mux.
func (h *PhyloHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware AuthMiddleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("GET /v2/phylo_runs", scopeMiddleware(authMiddleware(h.List)))
}

// List handles GET /v2/phylo_runs.
// Returns the runs visible to the requesting user, newest first.
func (h *PhyloHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserContext(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	views, err := h.phyloService.ListVisibleRuns(r.Context(), user)
	if err != nil {
		h.logger.Error("Failed to list phylo runs", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list phylo runs"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp := PhyloRunsListResponse{PhyloRuns: make([]PhyloRunResponse, 0, len(views))}
	for _, view := range views {
		run := PhyloRunResponse{
			ID:            view.Run.ID,
			Status:        string(view.Run.Status),
			StartDatetime: view.Run.StartDatetime,
			EndDatetime:   view.Run.EndDatetime,
		}
		if payload, ok := view.Run.PhyloRun(); ok {
			run.GroupID = payload.GroupID
			run.PathogenID = payload.PathogenID
			run.TreeType = string(payload.TreeType)
			run.Name = payload.Name
		}
		if view.Tree != nil {
			if payload, ok := view.Tree.Payload.(models.PhyloTreePayload); ok {
				run.Tree = &PhyloTreeResponse{
					EntityID: view.Tree.ID,
					Name:     payload.Name,
					S3Bucket: payload.S3Bucket,
					S3Key:    payload.S3Key,
				}
			}
		}
		resp.PhyloRuns = append(resp.PhyloRuns, run)
	}

	if err := JSONResponse(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
