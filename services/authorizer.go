package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

// ManagerAuthorizer decides whether a user may manage a tournament.
type ManagerAuthorizer interface {
	CanManage(ctx context.Context, exec repositories.SQLExecutor, userID string, tournament *models.Tournament) (bool, error)
}

type userAuthorizer struct {
	userRepo repositories.UserRepository
}

// NewUserAuthorizer grants management to admins and to the organizer who owns
// the tournament.
func NewUserAuthorizer(userRepo repositories.UserRepository) ManagerAuthorizer {
	return &userAuthorizer{userRepo: userRepo}
}

func (a *userAuthorizer) CanManage(ctx context.Context, exec repositories.SQLExecutor, userID string, tournament *models.Tournament) (bool, error) {
	if userID == "" || tournament == nil {
		return false, nil
	}
	user, err := a.userRepo.GetByID(ctx, exec, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user %s for authorization: %w", userID, err)
	}
	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleOrganizer:
		return tournament.OrganizerID == user.ID, nil
	default:
		return false, nil
	}
}

func requireManager(ctx context.Context, auth ManagerAuthorizer, exec repositories.SQLExecutor, userID string, t *models.Tournament) error {
	ok, err := auth.CanManage(ctx, exec, userID, t)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %s cannot manage tournament %s", ErrPermissionDenied, userID, t.ID)
	}
	return nil
}
