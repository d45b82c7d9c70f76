package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// GroupRepository provides data access for groups and group-to-group grants.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id int64) (*models.Group, error)

	// CreateGroupRole records a grant from grantor to grantee.
	CreateGroupRole(ctx context.Context, grant *models.GroupRole) error

	// ViewerGrantors returns the ids of groups that granted viewer or
	// higher to any of the grantee groups. Used to expand a user's
	// readable-group set.
	ViewerGrantors(ctx context.Context, granteeGroupIDs []int64) ([]int64, error)
}

type groupRepository struct{}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository() GroupRepository {
	return &groupRepository{}
}

var _ GroupRepository = (*groupRepository)(nil)

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	err := scope.Conn.QueryRow(ctx, `
		INSERT INTO groups (name, prefix, default_tree_location)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		group.Name, group.Prefix, group.DefaultTreeLocation,
	).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var group models.Group
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, name, prefix, default_tree_location, created_at
		FROM groups WHERE id = $1`, id,
	).Scan(&group.ID, &group.Name, &group.Prefix, &group.DefaultTreeLocation, &group.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

func (r *groupRepository) CreateGroupRole(ctx context.Context, grant *models.GroupRole) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if !models.IsValidRole(grant.Role) {
		return fmt.Errorf("invalid role %q", grant.Role)
	}

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO group_roles (grantor_group_id, grantee_group_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (grantor_group_id, grantee_group_id) DO UPDATE SET role = EXCLUDED.role`,
		grant.GrantorGroupID, grant.GranteeGroupID, grant.Role)
	if err != nil {
		return fmt.Errorf("failed to create group role: %w", err)
	}
	return nil
}

func (r *groupRepository) ViewerGrantors(ctx context.Context, granteeGroupIDs []int64) ([]int64, error) {
	if len(granteeGroupIDs) == 0 {
		return nil, nil
	}
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// Every defined role is viewer or higher, but the filter is explicit so
	// a future weaker role does not silently widen visibility.
	rows, err := scope.Conn.Query(ctx, `
		SELECT DISTINCT grantor_group_id
		FROM group_roles
		WHERE grantee_group_id = ANY($1) AND role = ANY($2)
		ORDER BY grantor_group_id`,
		granteeGroupIDs, models.ValidRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewer grantors: %w", err)
	}
	defer rows.Close()

	var grantors []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grantor id: %w", err)
		}
		grantors = append(grantors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grantor ids: %w", err)
	}
	return grantors, nil
}
