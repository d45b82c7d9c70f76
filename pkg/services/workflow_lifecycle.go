package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// WorkflowService drives workflow lifecycle transitions. Transitions race
// through a conditional UPDATE in the repository, so two writers can never
// both move the same workflow out of started.
type WorkflowService interface {
	// Start creates a workflow in started status consuming the given
	// inputs.
	Start(ctx context.Context, workflowType models.WorkflowType, inputIDs []int64, softwareVersions map[string]string, payload models.WorkflowPayload) (*models.Workflow, error)

	// Complete moves a started workflow to completed. endTime must not
	// precede the workflow's start_datetime.
	Complete(ctx context.Context, id int64, endTime time.Time) error

	// Fail moves a started workflow to failed. Calling Fail on a workflow
	// that is not started is an invariant violation, not a no-op.
	Fail(ctx context.Context, id int64, endTime time.Time) error

	// FailStale marks workflows stuck in started since before the cutoff
	// as failed. Operational sweep, not a state-machine guarantee; a run
	// that completes between listing and updating is left alone.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type workflowService struct {
	workflowRepo repositories.WorkflowRepository
	logger       *zap.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(workflowRepo repositories.WorkflowRepository, logger *zap.Logger) WorkflowService {
	return &workflowService{
		workflowRepo: workflowRepo,
		logger:       logger,
	}
}

var _ WorkflowService = (*workflowService)(nil)

func (s *workflowService) Start(ctx context.Context, workflowType models.WorkflowType, inputIDs []int64, softwareVersions map[string]string, payload models.WorkflowPayload) (*models.Workflow, error) {
	if len(inputIDs) == 0 {
		return nil, fmt.Errorf("workflow requires at least one input entity")
	}

	workflow := &models.Workflow{
		Type:             workflowType,
		Status:           models.WorkflowStatusStarted,
		StartDatetime:    time.Now(),
		SoftwareVersions: softwareVersions,
		InputIDs:         inputIDs,
		Payload:          payload,
	}
	if err := s.workflowRepo.Create(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.Info("Started workflow",
		zap.Int64("workflow_id", workflow.ID),
		zap.String("workflow_type", string(workflowType)),
		zap.Int("input_count", len(inputIDs)))
	return workflow, nil
}

func (s *workflowService) Complete(ctx context.Context, id int64, endTime time.Time) error {
	workflow, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if workflow == nil {
		return apperrors.ErrNotFound
	}
	if workflow.Status != models.WorkflowStatusStarted {
		return fmt.Errorf("%w: cannot complete workflow %d in status %s", apperrors.ErrInvalidTransition, id, workflow.Status)
	}
	if endTime.Before(workflow.StartDatetime) {
		return fmt.Errorf("%w: end time %s precedes start time %s", apperrors.ErrInvalidTransition, endTime, workflow.StartDatetime)
	}

	return s.workflowRepo.UpdateStatus(ctx, id, models.WorkflowStatusCompleted, endTime)
}

func (s *workflowService) Fail(ctx context.Context, id int64, endTime time.Time) error {
	workflow, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if workflow == nil {
		return apperrors.ErrNotFound
	}
	if workflow.Status != models.WorkflowStatusStarted {
		return fmt.Errorf("%w: cannot fail workflow %d in status %s", apperrors.ErrInvalidTransition, id, workflow.Status)
	}

	return s.workflowRepo.UpdateStatus(ctx, id, models.WorkflowStatusFailed, endTime)
}

func (s *workflowService) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	ids, err := s.workflowRepo.ListStaleStartedIDs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	failed := 0
	now := time.Now()
	for _, id := range ids {
		err := s.workflowRepo.UpdateStatus(ctx, id, models.WorkflowStatusFailed, now)
		if err != nil {
			// A workflow that completed since listing loses the race; that
			// is the intended outcome, not a sweep failure.
			s.logger.Warn("Skipped stale workflow",
				zap.Int64("workflow_id", id),
				zap.Error(err))
			continue
		}
		failed++
	}

	s.logger.Info("Stale workflow sweep finished",
		zap.Int("candidates", len(ids)),
		zap.Int("failed", failed))
	return failed, nil
}
