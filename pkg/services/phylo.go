package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// PhyloRunView is one phylo run as surfaced by list endpoints: the workflow
// plus its tree output when the run completed.
type PhyloRunView struct {
	Run  *models.Workflow
	Tree *models.Entity // nil unless the run completed with exactly one tree
}

// PhyloService lists phylogenetic runs under the group visibility rules:
// a run is visible to members of its owning group, to members of groups the
// owning group granted viewer or higher, and to system admins.
type PhyloService interface {
	ListVisibleRuns(ctx context.Context, user *models.UserContext) ([]PhyloRunView, error)
}

type phyloService struct {
	workflowRepo repositories.WorkflowRepository
	groupRepo    repositories.GroupRepository
	provenance   ProvenanceService
	logger       *zap.Logger
}

// NewPhyloService creates a new PhyloService.
func NewPhyloService(workflowRepo repositories.WorkflowRepository, groupRepo repositories.GroupRepository, provenance ProvenanceService, logger *zap.Logger) PhyloService {
	return &phyloService{
		workflowRepo: workflowRepo,
		groupRepo:    groupRepo,
		provenance:   provenance,
		logger:       logger,
	}
}

var _ PhyloService = (*phyloService)(nil)

func (s *phyloService) ListVisibleRuns(ctx context.Context, user *models.UserContext) ([]PhyloRunView, error) {
	var groupIDs []int64
	if !user.SystemAdmin {
		ownGroups := user.GroupIDs()
		grantors, err := s.groupRepo.ViewerGrantors(ctx, ownGroups)
		if err != nil {
			return nil, err
		}
		groupIDs = append(ownGroups, grantors...)
		if len(groupIDs) == 0 {
			return nil, nil
		}
	}

	runs, err := s.workflowRepo.ListPhyloRuns(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	views := make([]PhyloRunView, 0, len(runs))
	for _, run := range runs {
		view := PhyloRunView{Run: run}
		if run.Status == models.WorkflowStatusCompleted {
			tree, err := s.provenance.TreeForRun(ctx, run)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}
			view.Tree = tree
		}
		views = append(views, view)
	}
	return views, nil
}
