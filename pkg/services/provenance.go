// Package services contains the business logic of aspen-engine.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// ProvenanceService exposes one-hop traversal over the entity/workflow
// graph plus the typed compositions callers actually need. Provenance
// chains here are shallow (raw dump → processed dump → aligned dump → tree),
// so multi-hop reasoning is expressed by composing one-hop calls at the
// call site rather than by a generic transitive walk.
type ProvenanceService interface {
	// GetParents returns the inputs of the workflow that produced the
	// entity. One hop only; missing data is an empty result, not an error.
	GetParents(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]*models.Entity, error)

	// GetChildren returns each workflow consuming the entity together with
	// that workflow's outputs matching typeFilter.
	GetChildren(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]repositories.ChildWorkflow, error)

	// RawDumpForProcessed resolves the raw repository dump a processed dump
	// was derived from. Exactly one is expected; zero is ErrNotFound and
	// more than one an invariant violation.
	RawDumpForProcessed(ctx context.Context, processedDumpID int64) (*models.Entity, error)

	// TreeForRun resolves a phylo run's single tree output. Only COMPLETED
	// runs have a trustworthy tree; callers get ErrNotFound for runs that
	// are not completed or have no tree, and ErrAmbiguousTree if the
	// one-tree-per-run invariant is broken.
	TreeForRun(ctx context.Context, run *models.Workflow) (*models.Entity, error)
}

type provenanceService struct {
	entityRepo repositories.EntityRepository
	logger     *zap.Logger
}

// NewProvenanceService creates a new ProvenanceService.
func NewProvenanceService(entityRepo repositories.EntityRepository, logger *zap.Logger) ProvenanceService {
	return &provenanceService{
		entityRepo: entityRepo,
		logger:     logger,
	}
}

var _ ProvenanceService = (*provenanceService)(nil)

func (s *provenanceService) GetParents(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]*models.Entity, error) {
	return s.entityRepo.GetParents(ctx, entityID, typeFilter...)
}

func (s *provenanceService) GetChildren(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]repositories.ChildWorkflow, error) {
	return s.entityRepo.GetChildren(ctx, entityID, typeFilter...)
}

func (s *provenanceService) RawDumpForProcessed(ctx context.Context, processedDumpID int64) (*models.Entity, error) {
	parents, err := s.entityRepo.GetParents(ctx, processedDumpID, models.EntityTypeRawRepositoryDump)
	if err != nil {
		return nil, err
	}
	switch len(parents) {
	case 0:
		return nil, apperrors.ErrNotFound
	case 1:
		return parents[0], nil
	default:
		return nil, fmt.Errorf("processed dump %d has %d raw dump parents, expected exactly one", processedDumpID, len(parents))
	}
}

func (s *provenanceService) TreeForRun(ctx context.Context, run *models.Workflow) (*models.Entity, error) {
	if run.Type != models.WorkflowTypePhyloRun {
		return nil, fmt.Errorf("workflow %d is %s, not a phylo run", run.ID, run.Type)
	}
	if run.Status != models.WorkflowStatusCompleted {
		// Outputs of started or failed runs must never be surfaced.
		return nil, apperrors.ErrNotFound
	}

	trees, err := s.entityRepo.ListOutputs(ctx, run.ID, models.EntityTypePhyloTree)
	if err != nil {
		return nil, err
	}
	switch len(trees) {
	case 0:
		return nil, apperrors.ErrNotFound
	case 1:
		return trees[0], nil
	default:
		s.logger.Error("Phylo run has multiple tree outputs",
			zap.Int64("workflow_id", run.ID),
			zap.Int("tree_count", len(trees)))
		return nil, fmt.Errorf("%w: run %d has %d trees", apperrors.ErrAmbiguousTree, run.ID, len(trees))
	}
}
