package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// UserService assembles the authorization view of a user.
type UserService interface {
	// ResolveUserContext maps a token subject to the user plus the roles
	// they hold per group. Unknown subjects yield ErrNotFound.
	ResolveUserContext(ctx context.Context, subject string) (*models.UserContext, error)
}

type userService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) ResolveUserContext(ctx context.Context, subject string) (*models.UserContext, error) {
	user, err := s.userRepo.GetByAuthSubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}

	roles, err := s.userRepo.GetRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	groupRoles := make(map[int64]string, len(roles))
	for _, role := range roles {
		// Keep the strongest role per group.
		if models.RoleAtLeast(role.Role, groupRoles[role.GroupID]) {
			groupRoles[role.GroupID] = role.Role
		}
	}

	return &models.UserContext{
		UserID:      user.ID,
		AuthSubject: user.AuthSubject,
		SystemAdmin: user.SystemAdmin,
		GroupRoles:  groupRoles,
	}, nil
}
