package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// mockUserRepository is an in-memory implementation of UserRepository.
type mockUserRepository struct {
	users []*models.User
	roles []*models.UserRole
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(m.users) + 1)
	m.users = append(m.users, user)
	return nil
}

func (m *mockUserRepository) GetByAuthSubject(ctx context.Context, subject string) (*models.User, error) {
	for _, u := range m.users {
		if u.AuthSubject == subject {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetRoles(ctx context.Context, userID int64) ([]models.UserRole, error) {
	var roles []models.UserRole
	for _, r := range m.roles {
		if r.UserID == userID {
			roles = append(roles, *r)
		}
	}
	return roles, nil
}

func (m *mockUserRepository) AddRole(ctx context.Context, role *models.UserRole) error {
	m.roles = append(m.roles, role)
	return nil
}

func TestUserService_ResolveUserContext(t *testing.T) {
	repo := &mockUserRepository{
		users: []*models.User{
			{ID: 1, AuthSubject: "auth0|abc", Email: "dph@example.org"},
		},
		roles: []*models.UserRole{
			{UserID: 1, GroupID: 5, Role: models.RoleMember},
			{UserID: 1, GroupID: 7, Role: models.RoleViewer},
		},
	}
	svc := NewUserService(repo, zap.NewNop())

	user, err := svc.ResolveUserContext(context.Background(), "auth0|abc")
	require.NoError(t, err)

	assert.Equal(t, int64(1), user.UserID)
	assert.Equal(t, "auth0|abc", user.AuthSubject)
	assert.False(t, user.SystemAdmin)
	assert.Equal(t, map[int64]string{5: models.RoleMember, 7: models.RoleViewer}, user.GroupRoles)
}

func TestUserService_ResolveUserContext_StrongestRoleWins(t *testing.T) {
	repo := &mockUserRepository{
		users: []*models.User{{ID: 1, AuthSubject: "auth0|abc"}},
		roles: []*models.UserRole{
			{UserID: 1, GroupID: 5, Role: models.RoleViewer},
			{UserID: 1, GroupID: 5, Role: models.RoleAdmin},
			{UserID: 1, GroupID: 5, Role: models.RoleMember},
		},
	}
	svc := NewUserService(repo, zap.NewNop())

	user, err := svc.ResolveUserContext(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.GroupRoles[5])
}

func TestUserService_ResolveUserContext_UnknownSubject(t *testing.T) {
	svc := NewUserService(&mockUserRepository{}, zap.NewNop())

	_, err := svc.ResolveUserContext(context.Background(), "auth0|nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserService_ResolveUserContext_SystemAdmin(t *testing.T) {
	repo := &mockUserRepository{
		users: []*models.User{{ID: 2, AuthSubject: "auth0|root", SystemAdmin: true}},
	}
	svc := NewUserService(repo, zap.NewNop())

	user, err := svc.ResolveUserContext(context.Background(), "auth0|root")
	require.NoError(t, err)
	assert.True(t, user.SystemAdmin)
	assert.Empty(t, user.GroupRoles)
}
