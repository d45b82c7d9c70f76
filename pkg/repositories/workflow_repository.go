package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// WorkflowRepository provides data access for provenance graph workflows.
type WorkflowRepository interface {
	// Create inserts the workflow and its input references in one
	// transaction. Status defaults to started with StartDatetime now.
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id int64) (*models.Workflow, error)

	// UpdateStatus moves a started workflow to a terminal status with a
	// single conditional UPDATE. A losing racer (or a call against an
	// already-terminal workflow) affects zero rows and gets ErrConflict;
	// an unknown id gets ErrNotFound. end_datetime is only ever written
	// here, so a terminal workflow's end time is immutable.
	UpdateStatus(ctx context.Context, id int64, target models.WorkflowStatus, endTime time.Time) error

	// ListPhyloRuns returns phylo run workflows. A nil groupIDs slice
	// returns every run (admin); otherwise runs are restricted to the
	// given owning groups.
	ListPhyloRuns(ctx context.Context, groupIDs []int64) ([]*models.Workflow, error)

	// ListStaleStartedIDs returns ids of workflows still started whose
	// start_datetime is before the cutoff.
	ListStaleStartedIDs(ctx context.Context, cutoff time.Time) ([]int64, error)
}

type workflowRepository struct{}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository() WorkflowRepository {
	return &workflowRepository{}
}

var _ WorkflowRepository = (*workflowRepository)(nil)

func (r *workflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if !models.IsValidWorkflowType(workflow.Type) {
		return fmt.Errorf("invalid workflow type %q", workflow.Type)
	}
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusStarted
	}
	if workflow.Status != models.WorkflowStatusStarted {
		return fmt.Errorf("workflows are created in started status, got %q", workflow.Status)
	}
	if workflow.StartDatetime.IsZero() {
		workflow.StartDatetime = time.Now()
	}

	versionsJSON, err := json.Marshal(workflow.SoftwareVersions)
	if err != nil {
		return fmt.Errorf("failed to marshal software versions: %w", err)
	}
	payloadJSON, err := models.MarshalWorkflowPayload(workflow.Payload)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		INSERT INTO workflows (workflow_type, workflow_status, start_datetime, software_versions, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err = tx.QueryRow(ctx, query,
		workflow.Type, workflow.Status, workflow.StartDatetime, versionsJSON, payloadJSON,
	).Scan(&workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	for _, entityID := range workflow.InputIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO workflow_inputs (workflow_id, entity_id) VALUES ($1, $2)`,
			workflow.ID, entityID)
		if err != nil {
			return fmt.Errorf("failed to record workflow input %d: %w", entityID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *workflowRepository) GetByID(ctx context.Context, id int64) (*models.Workflow, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + workflowSelectColumns("w") + ` FROM workflows w WHERE w.id = $1`

	row := scope.Conn.QueryRow(ctx, query, id)
	workflow, err := scanWorkflowValues(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return workflow, nil
}

func (r *workflowRepository) UpdateStatus(ctx context.Context, id int64, target models.WorkflowStatus, endTime time.Time) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if !models.WorkflowStatusStarted.CanTransitionTo(target) {
		return fmt.Errorf("%w: started -> %s", apperrors.ErrInvalidTransition, target)
	}

	tag, err := scope.Conn.Exec(ctx, `
		UPDATE workflows
		SET workflow_status = $2, end_datetime = $3
		WHERE id = $1 AND workflow_status = $4`,
		id, target, endTime, models.WorkflowStatusStarted)
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the workflow does not exist or another writer moved
	// it to a terminal status first.
	var current models.WorkflowStatus
	err = scope.Conn.QueryRow(ctx, `SELECT workflow_status FROM workflows WHERE id = $1`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read workflow status: %w", err)
	}
	return fmt.Errorf("%w: workflow %d already %s", apperrors.ErrConflict, id, current)
}

func (r *workflowRepository) ListPhyloRuns(ctx context.Context, groupIDs []int64) ([]*models.Workflow, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + workflowSelectColumns("w") + `
		FROM workflows w
		WHERE w.workflow_type = $1`
	args := []any{models.WorkflowTypePhyloRun}
	if groupIDs != nil {
		query += ` AND (w.payload->>'group_id')::bigint = ANY($2)`
		args = append(args, groupIDs)
	}
	query += ` ORDER BY w.start_datetime DESC, w.id DESC`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query phylo runs: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		workflow, err := scanWorkflowValues(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read phylo runs: %w", err)
	}
	return workflows, nil
}

func (r *workflowRepository) ListStaleStartedIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id FROM workflows
		WHERE workflow_status = $1 AND start_datetime < $2
		ORDER BY id`,
		models.WorkflowStatusStarted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale workflows: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale workflow id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stale workflow ids: %w", err)
	}
	return ids, nil
}

// ============================================================================
// Scan Helpers
// ============================================================================

// workflowSelectColumns lists the workflow columns plus an aggregated input
// id array, qualified by the given table alias.
func workflowSelectColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.workflow_type, %[1]s.workflow_status, %[1]s.start_datetime, %[1]s.end_datetime, %[1]s.software_versions, %[1]s.payload,
		(SELECT COALESCE(array_agg(wi_in.entity_id ORDER BY wi_in.entity_id), '{}')
		 FROM workflow_inputs wi_in WHERE wi_in.workflow_id = %[1]s.id)`, alias)
}

func scanWorkflowValues(row pgx.Row) (*models.Workflow, error) {
	var workflow models.Workflow
	var versionsJSON, payloadJSON []byte
	err := row.Scan(
		&workflow.ID, &workflow.Type, &workflow.Status,
		&workflow.StartDatetime, &workflow.EndDatetime,
		&versionsJSON, &payloadJSON, &workflow.InputIDs,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan workflow row: %w", err)
	}

	if len(versionsJSON) > 0 {
		if err := json.Unmarshal(versionsJSON, &workflow.SoftwareVersions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal software versions: %w", err)
		}
	}
	workflow.Payload, err = models.UnmarshalWorkflowPayload(workflow.Type, payloadJSON)
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

// scanWorkflowWithEntity scans one joined (workflow, output entity) row as
// produced by EntityRepository.GetChildren.
func scanWorkflowWithEntity(rows pgx.Rows) (*models.Workflow, *models.Entity, error) {
	var workflow models.Workflow
	var entity models.Entity
	var versionsJSON, workflowPayloadJSON, entityPayloadJSON []byte

	err := rows.Scan(
		&workflow.ID, &workflow.Type, &workflow.Status,
		&workflow.StartDatetime, &workflow.EndDatetime,
		&versionsJSON, &workflowPayloadJSON, &workflow.InputIDs,
		&entity.ID, &entity.Type, &entity.OwningGroupID,
		&entity.ProducingWorkflowID, &entity.SampleID, &entityPayloadJSON, &entity.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan workflow/entity row: %w", err)
	}

	if len(versionsJSON) > 0 {
		if err := json.Unmarshal(versionsJSON, &workflow.SoftwareVersions); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal software versions: %w", err)
		}
	}
	workflow.Payload, err = models.UnmarshalWorkflowPayload(workflow.Type, workflowPayloadJSON)
	if err != nil {
		return nil, nil, err
	}
	entity.Payload, err = models.UnmarshalEntityPayload(entity.Type, entityPayloadJSON)
	if err != nil {
		return nil, nil, err
	}
	return &workflow, &entity, nil
}
