//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/testhelpers"
)

func TestWorkflowRepository_ConditionalStatusUpdate(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	ctx := tdb.ScopedContext(t)

	repo := NewWorkflowRepository()
	workflow := &models.Workflow{Type: models.WorkflowTypeProcessRepositoryDump}
	require.NoError(t, repo.Create(ctx, workflow))

	endTime := time.Now()
	require.NoError(t, repo.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusCompleted, endTime))

	stored, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
	require.NotNil(t, stored.EndDatetime)

	// The terminal row no longer matches the conditional UPDATE: a late
	// writer affects zero rows and surfaces as a conflict, and the end time
	// stays what the winner wrote.
	err = repo.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusFailed, endTime.Add(time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	after, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, after.Status)
	assert.True(t, after.EndDatetime.Equal(*stored.EndDatetime))
}

func TestWorkflowRepository_UpdateStatusUnknownWorkflow(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	ctx := tdb.ScopedContext(t)

	err := NewWorkflowRepository().UpdateStatus(ctx, 999999999,
		models.WorkflowStatusFailed, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWorkflowRepository_StaleStartedListing(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	ctx := tdb.ScopedContext(t)

	repo := NewWorkflowRepository()

	stale := &models.Workflow{
		Type:          models.WorkflowTypeAlignRepositoryDump,
		StartDatetime: time.Now().Add(-49 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, stale))

	fresh := &models.Workflow{Type: models.WorkflowTypeAlignRepositoryDump}
	require.NoError(t, repo.Create(ctx, fresh))

	cutoff := time.Now().Add(-48 * time.Hour)
	ids, err := repo.ListStaleStartedIDs(ctx, cutoff)
	require.NoError(t, err)
	assert.Contains(t, ids, stale.ID)
	assert.NotContains(t, ids, fresh.ID)

	// Once failed, the workflow drops out of the sweep's view.
	require.NoError(t, repo.UpdateStatus(ctx, stale.ID, models.WorkflowStatusFailed, time.Now()))
	ids, err = repo.ListStaleStartedIDs(ctx, cutoff)
	require.NoError(t, err)
	assert.NotContains(t, ids, stale.ID)
}

func TestWorkflowRepository_CreateRecordsInputs(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	ctx := tdb.ScopedContext(t)

	entityRepo := NewEntityRepository()
	input := &models.Entity{
		Type:    models.EntityTypeRawRepositoryDump,
		Payload: models.RepositoryDumpPayload{S3Bucket: "aspen-dumps", S3Key: "raw/in.tar.zst"},
	}
	require.NoError(t, entityRepo.Create(ctx, input))

	repo := NewWorkflowRepository()
	workflow := &models.Workflow{
		Type:     models.WorkflowTypeProcessRepositoryDump,
		InputIDs: []int64{input.ID},
	}
	require.NoError(t, repo.Create(ctx, workflow))

	stored, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []int64{input.ID}, stored.InputIDs)
	assert.Equal(t, models.WorkflowStatusStarted, stored.Status)
	assert.Nil(t, stored.EndDatetime)
}
