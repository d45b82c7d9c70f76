package services

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// mockEntityRepository is an in-memory implementation of EntityRepository
// holding a provenance graph as entities plus workflows with input edges.
type mockEntityRepository struct {
	entities  map[int64]*models.Entity
	workflows map[int64]*models.Workflow
	nextID    int64
}

func newMockEntityRepository() *mockEntityRepository {
	return &mockEntityRepository{
		entities:  make(map[int64]*models.Entity),
		workflows: make(map[int64]*models.Workflow),
	}
}

func (m *mockEntityRepository) addEntity(e *models.Entity) *models.Entity {
	m.nextID++
	e.ID = m.nextID
	m.entities[e.ID] = e
	return e
}

func (m *mockEntityRepository) addWorkflow(w *models.Workflow) *models.Workflow {
	m.nextID++
	w.ID = m.nextID
	m.workflows[w.ID] = w
	return w
}

func (m *mockEntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	m.addEntity(entity)
	return nil
}

func (m *mockEntityRepository) GetByID(ctx context.Context, id int64) (*models.Entity, error) {
	return m.entities[id], nil
}

func matchesEntityType(t models.EntityType, filter []models.EntityType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == t {
			return true
		}
	}
	return false
}

func (m *mockEntityRepository) GetParents(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]*models.Entity, error) {
	entity := m.entities[entityID]
	if entity == nil || entity.ProducingWorkflowID == nil {
		return nil, nil
	}
	workflow := m.workflows[*entity.ProducingWorkflowID]
	if workflow == nil {
		return nil, nil
	}

	var parents []*models.Entity
	for _, inputID := range workflow.InputIDs {
		if parent := m.entities[inputID]; parent != nil && matchesEntityType(parent.Type, typeFilter) {
			parents = append(parents, parent)
		}
	}
	return parents, nil
}

func (m *mockEntityRepository) GetChildren(ctx context.Context, entityID int64, typeFilter ...models.EntityType) ([]repositories.ChildWorkflow, error) {
	workflowIDs := make([]int64, 0, len(m.workflows))
	for id := range m.workflows {
		workflowIDs = append(workflowIDs, id)
	}
	sort.Slice(workflowIDs, func(i, j int) bool { return workflowIDs[i] < workflowIDs[j] })

	var children []repositories.ChildWorkflow
	for _, wid := range workflowIDs {
		workflow := m.workflows[wid]
		consumes := false
		for _, inputID := range workflow.InputIDs {
			if inputID == entityID {
				consumes = true
				break
			}
		}
		if !consumes {
			continue
		}

		outputs, _ := m.ListOutputs(ctx, wid, typeFilter...)
		if len(outputs) == 0 {
			continue
		}
		children = append(children, repositories.ChildWorkflow{Workflow: workflow, Outputs: outputs})
	}
	return children, nil
}

func (m *mockEntityRepository) ListOutputs(ctx context.Context, workflowID int64, typeFilter ...models.EntityType) ([]*models.Entity, error) {
	ids := make([]int64, 0, len(m.entities))
	for id := range m.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var outputs []*models.Entity
	for _, id := range ids {
		entity := m.entities[id]
		if entity.ProducingWorkflowID != nil && *entity.ProducingWorkflowID == workflowID && matchesEntityType(entity.Type, typeFilter) {
			outputs = append(outputs, entity)
		}
	}
	return outputs, nil
}

// buildDumpChain wires raw dump -> process workflow -> processed dump and
// returns the two entities.
func buildDumpChain(repo *mockEntityRepository) (raw, processed *models.Entity) {
	raw = repo.addEntity(&models.Entity{Type: models.EntityTypeRawRepositoryDump})
	workflow := repo.addWorkflow(&models.Workflow{
		Type:     models.WorkflowTypeProcessRepositoryDump,
		Status:   models.WorkflowStatusCompleted,
		InputIDs: []int64{raw.ID},
	})
	processed = repo.addEntity(&models.Entity{
		Type:                models.EntityTypeProcessedRepositoryDump,
		ProducingWorkflowID: &workflow.ID,
	})
	return raw, processed
}

func TestProvenanceService_GetParents(t *testing.T) {
	repo := newMockEntityRepository()
	raw, processed := buildDumpChain(repo)
	svc := NewProvenanceService(repo, zap.NewNop())

	parents, err := svc.GetParents(context.Background(), processed.ID)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, raw.ID, parents[0].ID)
}

func TestProvenanceService_GetParents_TypeFilter(t *testing.T) {
	repo := newMockEntityRepository()
	reads := repo.addEntity(&models.Entity{Type: models.EntityTypeSequencingReads})
	dump := repo.addEntity(&models.Entity{Type: models.EntityTypeAlignedRepositoryDump})
	workflow := repo.addWorkflow(&models.Workflow{
		Type:     models.WorkflowTypeCallConsensus,
		Status:   models.WorkflowStatusCompleted,
		InputIDs: []int64{reads.ID, dump.ID},
	})
	genome := repo.addEntity(&models.Entity{
		Type:                models.EntityTypeCalledPathogenGenome,
		ProducingWorkflowID: &workflow.ID,
	})
	svc := NewProvenanceService(repo, zap.NewNop())

	parents, err := svc.GetParents(context.Background(), genome.ID, models.EntityTypeSequencingReads)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, reads.ID, parents[0].ID)
}

func TestProvenanceService_GetParents_ExternallyIngested(t *testing.T) {
	repo := newMockEntityRepository()
	uploaded := repo.addEntity(&models.Entity{Type: models.EntityTypeUploadedPathogenGenome})
	svc := NewProvenanceService(repo, zap.NewNop())

	// No producing workflow: empty result, never an error.
	parents, err := svc.GetParents(context.Background(), uploaded.ID)
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestProvenanceService_GetChildren(t *testing.T) {
	repo := newMockEntityRepository()
	raw, processed := buildDumpChain(repo)
	svc := NewProvenanceService(repo, zap.NewNop())

	children, err := svc.GetChildren(context.Background(), raw.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Len(t, children[0].Outputs, 1)
	assert.Equal(t, processed.ID, children[0].Outputs[0].ID)
}

func TestProvenanceService_GetChildren_DropsWorkflowsWithoutMatchingOutputs(t *testing.T) {
	repo := newMockEntityRepository()
	raw, _ := buildDumpChain(repo)
	// A second consumer whose outputs are all the wrong type for the filter.
	other := repo.addWorkflow(&models.Workflow{
		Type:     models.WorkflowTypeAlignRepositoryDump,
		Status:   models.WorkflowStatusCompleted,
		InputIDs: []int64{raw.ID},
	})
	repo.addEntity(&models.Entity{
		Type:                models.EntityTypeAlignedRepositoryDump,
		ProducingWorkflowID: &other.ID,
	})
	svc := NewProvenanceService(repo, zap.NewNop())

	children, err := svc.GetChildren(context.Background(), raw.ID, models.EntityTypeProcessedRepositoryDump)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, models.WorkflowTypeProcessRepositoryDump, children[0].Workflow.Type)
}

func TestProvenanceService_RawDumpForProcessed(t *testing.T) {
	repo := newMockEntityRepository()
	raw, processed := buildDumpChain(repo)
	svc := NewProvenanceService(repo, zap.NewNop())

	got, err := svc.RawDumpForProcessed(context.Background(), processed.ID)
	require.NoError(t, err)
	assert.Equal(t, raw.ID, got.ID)
}

func TestProvenanceService_RawDumpForProcessed_NoParent(t *testing.T) {
	repo := newMockEntityRepository()
	orphan := repo.addEntity(&models.Entity{Type: models.EntityTypeProcessedRepositoryDump})
	svc := NewProvenanceService(repo, zap.NewNop())

	_, err := svc.RawDumpForProcessed(context.Background(), orphan.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvenanceService_TreeForRun(t *testing.T) {
	repo := newMockEntityRepository()
	run := repo.addWorkflow(&models.Workflow{
		Type:     models.WorkflowTypePhyloRun,
		Status:   models.WorkflowStatusCompleted,
		InputIDs: []int64{99},
	})
	tree := repo.addEntity(&models.Entity{
		Type:                models.EntityTypePhyloTree,
		ProducingWorkflowID: &run.ID,
	})
	svc := NewProvenanceService(repo, zap.NewNop())

	got, err := svc.TreeForRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, tree.ID, got.ID)
}

func TestProvenanceService_TreeForRun_NotCompleted(t *testing.T) {
	repo := newMockEntityRepository()
	svc := NewProvenanceService(repo, zap.NewNop())

	for _, status := range []models.WorkflowStatus{models.WorkflowStatusStarted, models.WorkflowStatusFailed} {
		run := repo.addWorkflow(&models.Workflow{Type: models.WorkflowTypePhyloRun, Status: status})
		repo.addEntity(&models.Entity{
			Type:                models.EntityTypePhyloTree,
			ProducingWorkflowID: &run.ID,
		})

		// Even with a tree in place, non-completed runs expose nothing.
		_, err := svc.TreeForRun(context.Background(), run)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, "status %s", status)
	}
}

func TestProvenanceService_TreeForRun_NoTree(t *testing.T) {
	repo := newMockEntityRepository()
	run := repo.addWorkflow(&models.Workflow{Type: models.WorkflowTypePhyloRun, Status: models.WorkflowStatusCompleted})
	svc := NewProvenanceService(repo, zap.NewNop())

	_, err := svc.TreeForRun(context.Background(), run)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvenanceService_TreeForRun_MultipleTrees(t *testing.T) {
	repo := newMockEntityRepository()
	run := repo.addWorkflow(&models.Workflow{Type: models.WorkflowTypePhyloRun, Status: models.WorkflowStatusCompleted})
	for i := 0; i < 2; i++ {
		repo.addEntity(&models.Entity{
			Type:                models.EntityTypePhyloTree,
			ProducingWorkflowID: &run.ID,
		})
	}
	svc := NewProvenanceService(repo, zap.NewNop())

	_, err := svc.TreeForRun(context.Background(), run)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousTree)
}

func TestProvenanceService_TreeForRun_WrongWorkflowType(t *testing.T) {
	repo := newMockEntityRepository()
	run := repo.addWorkflow(&models.Workflow{Type: models.WorkflowTypeCallConsensus, Status: models.WorkflowStatusCompleted})
	svc := NewProvenanceService(repo, zap.NewNop())

	_, err := svc.TreeForRun(context.Background(), run)
	assert.Error(t, err)
}
