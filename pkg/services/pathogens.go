package services

import (
	"context"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// PathogenService looks up pathogens, repositories, and known lineages.
type PathogenService interface {
	// GetPathogenAndRepository resolves a pathogen slug and repository
	// name together. Either missing yields ErrNotFound.
	GetPathogenAndRepository(ctx context.Context, pathogenSlug, repositoryName string) (*models.Pathogen, *models.PublicRepository, error)

	// KnownLineages returns all lineages recorded for the pathogen slug.
	KnownLineages(ctx context.Context, pathogenSlug string) ([]string, error)
}

type pathogenService struct {
	pathogenRepo repositories.PathogenRepository
}

// NewPathogenService creates a new PathogenService.
func NewPathogenService(pathogenRepo repositories.PathogenRepository) PathogenService {
	return &pathogenService{pathogenRepo: pathogenRepo}
}

var _ PathogenService = (*pathogenService)(nil)

func (s *pathogenService) GetPathogenAndRepository(ctx context.Context, pathogenSlug, repositoryName string) (*models.Pathogen, *models.PublicRepository, error) {
	pathogen, err := s.pathogenRepo.GetBySlug(ctx, pathogenSlug)
	if err != nil {
		return nil, nil, err
	}
	if pathogen == nil {
		return nil, nil, apperrors.ErrNotFound
	}

	repository, err := s.pathogenRepo.GetRepositoryByName(ctx, repositoryName)
	if err != nil {
		return nil, nil, err
	}
	if repository == nil {
		return nil, nil, apperrors.ErrNotFound
	}

	return pathogen, repository, nil
}

func (s *pathogenService) KnownLineages(ctx context.Context, pathogenSlug string) ([]string, error) {
	pathogen, err := s.pathogenRepo.GetBySlug(ctx, pathogenSlug)
	if err != nil {
		return nil, err
	}
	if pathogen == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.pathogenRepo.ListLineages(ctx, pathogen.ID)
}
