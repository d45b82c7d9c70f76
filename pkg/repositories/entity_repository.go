// Package repositories contains data access for aspen-engine. All
// repositories read their connection from the request scope in context.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// ChildWorkflow pairs a workflow consuming an entity with that workflow's
// outputs (filtered to the caller's requested types).
type ChildWorkflow struct {
	Workflow *models.Workflow
	Outputs  []*models.Entity
}

// EntityRepository provides data access for provenance graph entities.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id int64) (*models.Entity, error)

	// GetParents returns the inputs of the workflow that produced the
	// entity: a one-hop upward traversal. Externally-ingested entities
	// (no producing workflow) yield an empty result. If typeFilter is
	// given, only entities of those concrete subtypes are returned.
	GetParents(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]*models.Entity, error)

	// GetChildren returns, for every workflow that consumed the entity as
	// an input, that workflow paired with its outputs matching typeFilter
	// (all outputs if typeFilter is empty). Workflows with zero matching
	// outputs are dropped.
	GetChildren(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]ChildWorkflow, error)

	// ListOutputs returns the entities produced by the given workflow,
	// optionally restricted by type.
	ListOutputs(ctx context.Context, workflowID int64, typeFilter ...models.EntityType) ([]*models.Entity, error)
}

type entityRepository struct{}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository() EntityRepository {
	return &entityRepository{}
}

var _ EntityRepository = (*entityRepository)(nil)

const entityColumns = `id, entity_type, owning_group_id, producing_workflow_id, sample_id, payload, created_at`

func (r *entityRepository) Create(ctx context.Context, entity *models.Entity) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if !models.IsValidEntityType(entity.Type) {
		return fmt.Errorf("invalid entity type %q", entity.Type)
	}

	payloadJSON, err := models.MarshalEntityPayload(entity.Payload)
	if err != nil {
		return err
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO entities (entity_type, owning_group_id, producing_workflow_id, sample_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err = scope.Conn.QueryRow(ctx, query,
		entity.Type, entity.OwningGroupID, entity.ProducingWorkflowID, entity.SampleID, payloadJSON, entity.CreatedAt,
	).Scan(&entity.ID)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, id int64) (*models.Entity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, id)
	entity, err := scanEntityRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

func (r *entityRepository) GetParents(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]*models.Entity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT p.id, p.entity_type, p.owning_group_id, p.producing_workflow_id, p.sample_id, p.payload, p.created_at
		FROM entities e
		JOIN workflow_inputs wi ON wi.workflow_id = e.producing_workflow_id
		JOIN entities p ON p.id = wi.entity_id
		WHERE e.id = $1`
	args := []any{entityID}
	if len(typeFilter) > 0 {
		query += ` AND p.entity_type = ANY($2)`
		args = append(args, entityTypeNames(typeFilter))
	}
	query += ` ORDER BY p.id`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity parents: %w", err)
	}
	defer rows.Close()

	return scanEntityRows(rows)
}

func (r *entityRepository) GetChildren(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]ChildWorkflow, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// Inner join on outputs drops consuming workflows with no output of the
	// requested types.
	query := `
		SELECT ` + workflowSelectColumns("w") + `,
		       o.id, o.entity_type, o.owning_group_id, o.producing_workflow_id, o.sample_id, o.payload, o.created_at
		FROM workflow_inputs wi
		JOIN workflows w ON w.id = wi.workflow_id
		JOIN entities o ON o.producing_workflow_id = w.id
		WHERE wi.entity_id = $1`
	args := []any{entityID}
	if len(typeFilter) > 0 {
		query += ` AND o.entity_type = ANY($2)`
		args = append(args, entityTypeNames(typeFilter))
	}
	query += ` ORDER BY w.id, o.id`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity children: %w", err)
	}
	defer rows.Close()

	var children []ChildWorkflow
	for rows.Next() {
		workflow, entity, err := scanWorkflowWithEntity(rows)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 && children[len(children)-1].Workflow.ID == workflow.ID {
			last := &children[len(children)-1]
			last.Outputs = append(last.Outputs, entity)
			continue
		}
		children = append(children, ChildWorkflow{Workflow: workflow, Outputs: []*models.Entity{entity}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity children: %w", err)
	}

	return children, nil
}

func (r *entityRepository) ListOutputs(ctx context.Context, workflowID int64, typeFilter ...models.EntityType) ([]*models.Entity, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE producing_workflow_id = $1`
	args := []any{workflowID}
	if len(typeFilter) > 0 {
		query += ` AND entity_type = ANY($2)`
		args = append(args, entityTypeNames(typeFilter))
	}
	query += ` ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow outputs: %w", err)
	}
	defer rows.Close()

	return scanEntityRows(rows)
}

// ============================================================================
// Scan Helpers
// ============================================================================

func entityTypeNames(types []models.EntityType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func scanEntityRow(row pgx.Row) (*models.Entity, error) {
	var entity models.Entity
	var payloadJSON []byte
	err := row.Scan(
		&entity.ID, &entity.Type, &entity.OwningGroupID,
		&entity.ProducingWorkflowID, &entity.SampleID, &payloadJSON, &entity.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity row: %w", err)
	}

	entity.Payload, err = models.UnmarshalEntityPayload(entity.Type, payloadJSON)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func scanEntityRows(rows pgx.Rows) ([]*models.Entity, error) {
	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity rows: %w", err)
	}
	return entities, nil
}
