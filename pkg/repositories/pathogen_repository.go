package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// PathogenRepository provides data access for pathogens, public
// repositories, known lineages, and external strain metadata.
type PathogenRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Pathogen, error)
	GetRepositoryByName(ctx context.Context, name string) (*models.PublicRepository, error)

	// ListLineages returns every lineage name recorded for the pathogen.
	ListLineages(ctx context.Context, pathogenID int64) ([]string, error)

	// FindStrains checks which of the given (already-normalized) strain
	// names exist for the pathogen in the repository's metadata table and
	// returns them as a set.
	FindStrains(ctx context.Context, names []string, pathogenID, repositoryID int64) (map[string]bool, error)
}

type pathogenRepository struct{}

// NewPathogenRepository creates a new PathogenRepository.
func NewPathogenRepository() PathogenRepository {
	return &pathogenRepository{}
}

var _ PathogenRepository = (*pathogenRepository)(nil)

func (r *pathogenRepository) GetBySlug(ctx context.Context, slug string) (*models.Pathogen, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var pathogen models.Pathogen
	err := scope.Conn.QueryRow(ctx,
		`SELECT id, slug, name FROM pathogens WHERE slug = $1`, slug,
	).Scan(&pathogen.ID, &pathogen.Slug, &pathogen.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pathogen: %w", err)
	}
	return &pathogen, nil
}

func (r *pathogenRepository) GetRepositoryByName(ctx context.Context, name string) (*models.PublicRepository, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var repo models.PublicRepository
	err := scope.Conn.QueryRow(ctx,
		`SELECT id, name, strain_prefix FROM public_repositories WHERE name = $1`, name,
	).Scan(&repo.ID, &repo.Name, &repo.StrainPrefix)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get public repository: %w", err)
	}
	return &repo, nil
}

func (r *pathogenRepository) ListLineages(ctx context.Context, pathogenID int64) ([]string, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT lineage FROM pathogen_lineages
		WHERE pathogen_id = $1
		ORDER BY lineage`, pathogenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pathogen lineages: %w", err)
	}
	defer rows.Close()

	var lineages []string
	for rows.Next() {
		var lineage string
		if err := rows.Scan(&lineage); err != nil {
			return nil, fmt.Errorf("failed to scan lineage: %w", err)
		}
		lineages = append(lineages, lineage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lineages: %w", err)
	}
	return lineages, nil
}

func (r *pathogenRepository) FindStrains(ctx context.Context, names []string, pathogenID, repositoryID int64) (map[string]bool, error) {
	if len(names) == 0 {
		return map[string]bool{}, nil
	}
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT strain_name FROM repository_metadata
		WHERE strain_name = ANY($1) AND pathogen_id = $2 AND repository_id = $3`,
		names, pathogenID, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository metadata: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan strain name: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read strain names: %w", err)
	}
	return found, nil
}
