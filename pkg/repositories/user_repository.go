package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// UserRepository provides data access for users and user-role grants.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByAuthSubject(ctx context.Context, subject string) (*models.User, error)
	GetRoles(ctx context.Context, userID int64) ([]models.UserRole, error)
	AddRole(ctx context.Context, role *models.UserRole) error
}

type userRepository struct{}

// NewUserRepository creates a new UserRepository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	err := scope.Conn.QueryRow(ctx, `
		INSERT INTO users (auth_subject, email, name, system_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		user.AuthSubject, user.Email, user.Name, user.SystemAdmin,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByAuthSubject(ctx context.Context, subject string) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var user models.User
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, auth_subject, email, name, system_admin, created_at
		FROM users WHERE auth_subject = $1`, subject,
	).Scan(&user.ID, &user.AuthSubject, &user.Email, &user.Name, &user.SystemAdmin, &user.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by auth subject: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetRoles(ctx context.Context, userID int64) ([]models.UserRole, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT user_id, group_id, role
		FROM user_roles WHERE user_id = $1
		ORDER BY group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.UserRole
	for rows.Next() {
		var role models.UserRole
		if err := rows.Scan(&role.UserID, &role.GroupID, &role.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user roles: %w", err)
	}
	return roles, nil
}

func (r *userRepository) AddRole(ctx context.Context, role *models.UserRole) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if !models.IsValidRole(role.Role) {
		return fmt.Errorf("invalid role %q", role.Role)
	}

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO user_roles (user_id, group_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO UPDATE SET role = EXCLUDED.role`,
		role.UserID, role.GroupID, role.Role)
	if err != nil {
		return fmt.Errorf("failed to add user role: %w", err)
	}
	return nil
}
