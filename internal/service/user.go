package service

import (
	"context"
	"fmt"

	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"go.uber.org/zap"
)

type UserService interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	DeleteUser(ctx context.Context, actor models.Actor, userID int64) error
}

type userService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *userService) DeleteUser(ctx context.Context, actor models.Actor, userID int64) error {
	if actor.UserID == userID {
		return ErrCannotDeleteSelf
	}

	deleted, err := s.repo.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	s.logger.Info("User deleted", zap.Int64("user_id", userID), zap.Int64("deleted_by", actor.UserID))
	return nil
}

func (s *userService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
