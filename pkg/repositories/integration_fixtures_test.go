//go:build integration

package repositories

import (
	"context"
	"strings"
	"testing"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// The test container is shared across the run, so fixtures carry
// test-specific names to stay out of each other's way.

func seedGroup(t *testing.T, ctx context.Context, name, prefix string) *models.Group {
	t.Helper()

	group := &models.Group{Name: name, Prefix: prefix}
	if err := NewGroupRepository().Create(ctx, group); err != nil {
		t.Fatalf("Failed to seed group %s: %v", name, err)
	}
	return group
}

func grantViewer(t *testing.T, ctx context.Context, grantorID, granteeID int64) {
	t.Helper()

	err := NewGroupRepository().CreateGroupRole(ctx, &models.GroupRole{
		GrantorGroupID: grantorID,
		GranteeGroupID: granteeID,
		Role:           models.RoleViewer,
	})
	if err != nil {
		t.Fatalf("Failed to seed grant %d->%d: %v", grantorID, granteeID, err)
	}
}

func seedPathogen(t *testing.T, ctx context.Context, slug string) *models.Pathogen {
	t.Helper()

	scope, ok := database.GetScope(ctx)
	if !ok {
		t.Fatal("no database scope in context")
	}

	pathogen := &models.Pathogen{Slug: slug, Name: strings.ToUpper(slug)}
	err := scope.Conn.QueryRow(ctx, `
		INSERT INTO pathogens (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		pathogen.Slug, pathogen.Name,
	).Scan(&pathogen.ID)
	if err != nil {
		t.Fatalf("Failed to seed pathogen %s: %v", slug, err)
	}
	return pathogen
}

func seedSample(t *testing.T, ctx context.Context, sample *models.Sample) *models.Sample {
	t.Helper()

	if err := NewSampleRepository().Create(ctx, sample); err != nil {
		t.Fatalf("Failed to seed sample %s: %v", sample.PublicIdentifier, err)
	}
	return sample
}
