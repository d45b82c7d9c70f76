package services

import (
	"context"
	"strings"

	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// ReconcileIdentifiers splits the requested identifiers into those covered
// by the authorized samples (matching either the public or the private
// identifier) and the rest. found and missing always partition requested:
// their union is requested and their intersection is empty.
func ReconcileIdentifiers(requested map[string]bool, authorized []*models.Sample) (found, missing map[string]bool) {
	found = make(map[string]bool)
	missing = make(map[string]bool)

	known := make(map[string]bool, len(authorized)*2)
	for _, sample := range authorized {
		known[sample.PublicIdentifier] = true
		known[sample.PrivateIdentifier] = true
	}

	for id := range requested {
		if known[id] {
			found[id] = true
		} else {
			missing[id] = true
		}
	}
	return found, missing
}

// ReconcileService resolves leftover identifiers against external
// repository metadata (one row per strain per pathogen per repository).
type ReconcileService interface {
	// MatchRepositoryStrains checks each identifier against the
	// repository's strain table after stripping the repository's strain
	// prefix (e.g. "hCoV-19/") when present. Matching is exact string
	// equality post-normalization. The returned set contains the ORIGINAL
	// identifiers as submitted, so callers can echo back exactly what the
	// user sent.
	MatchRepositoryStrains(ctx context.Context, ids map[string]bool, pathogen *models.Pathogen, repository *models.PublicRepository) (map[string]bool, error)
}

type reconcileService struct {
	pathogenRepo repositories.PathogenRepository
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(pathogenRepo repositories.PathogenRepository) ReconcileService {
	return &reconcileService{pathogenRepo: pathogenRepo}
}

var _ ReconcileService = (*reconcileService)(nil)

func (s *reconcileService) MatchRepositoryStrains(ctx context.Context, ids map[string]bool, pathogen *models.Pathogen, repository *models.PublicRepository) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	// normalized strain name -> original identifiers that reduce to it.
	// Two originals ("hCoV-19/x" and "x") can collapse to one strain.
	originals := make(map[string][]string, len(ids))
	normalized := make([]string, 0, len(ids))
	for id := range ids {
		name := id
		if repository.StrainPrefix != "" {
			name = strings.TrimPrefix(id, repository.StrainPrefix)
		}
		if _, seen := originals[name]; !seen {
			normalized = append(normalized, name)
		}
		originals[name] = append(originals[name], id)
	}

	foundStrains, err := s.pathogenRepo.FindStrains(ctx, normalized, pathogen.ID, repository.ID)
	if err != nil {
		return nil, err
	}

	matched := make(map[string]bool)
	for name := range foundStrains {
		for _, original := range originals[name] {
			matched[original] = true
		}
	}
	return matched, nil
}
