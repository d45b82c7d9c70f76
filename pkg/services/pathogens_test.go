package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

func TestPathogenService_GetPathogenAndRepository(t *testing.T) {
	repo := &mockPathogenRepository{
		pathogens:    []*models.Pathogen{{ID: 1, Slug: "sc2", Name: "SARS-CoV-2"}},
		repositories: []*models.PublicRepository{{ID: 1, Name: "gisaid", StrainPrefix: "hCoV-19/"}},
	}
	svc := NewPathogenService(repo)

	pathogen, repository, err := svc.GetPathogenAndRepository(context.Background(), "sc2", "gisaid")
	require.NoError(t, err)
	assert.Equal(t, "SARS-CoV-2", pathogen.Name)
	assert.Equal(t, "hCoV-19/", repository.StrainPrefix)
}

func TestPathogenService_GetPathogenAndRepository_Missing(t *testing.T) {
	repo := &mockPathogenRepository{
		pathogens: []*models.Pathogen{{ID: 1, Slug: "sc2"}},
	}
	svc := NewPathogenService(repo)

	_, _, err := svc.GetPathogenAndRepository(context.Background(), "mpx", "gisaid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = svc.GetPathogenAndRepository(context.Background(), "sc2", "genbank")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPathogenService_KnownLineages(t *testing.T) {
	repo := &mockPathogenRepository{
		pathogens: []*models.Pathogen{{ID: 1, Slug: "sc2"}},
		lineages:  map[int64][]string{1: {"B.1.1.7", "BA.1"}},
	}
	svc := NewPathogenService(repo)

	lineages, err := svc.KnownLineages(context.Background(), "sc2")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.1.1.7", "BA.1"}, lineages)
}
