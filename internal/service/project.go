package service

import (
	"context"
	"fmt"

	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"go.uber.org/zap"
)

type ProjectService interface {
	CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID int64) error
	// ListProjects returns every project for admins and the assigned ones otherwise.
	ListProjects(ctx context.Context, actor models.Actor) ([]*models.Project, error)
	GetProject(ctx context.Context, actor models.Actor, projectID int64) (*models.Project, error)

	AssignUser(ctx context.Context, projectID, userID int64) error
	UnassignUser(ctx context.Context, projectID, userID int64) error
	ListProjectUsers(ctx context.Context, actor models.Actor, projectID int64) ([]*models.User, error)

	ListChatRooms(ctx context.Context, actor models.Actor, projectID int64) ([]*models.ChatRoom, error)
	GetChatRoom(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) (*models.ChatRoom, error)
	ListMessages(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) ([]*models.ChatMessage, error)
}

type projectService struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
	rooms    repository.ChatRoomRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewProjectService(
	projects repository.ProjectRepository,
	users repository.UserRepository,
	rooms repository.ChatRoomRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projects: projects,
		users:    users,
		rooms:    rooms,
		messages: messages,
		logger:   logger,
	}
}

func (s *projectService) CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.Project, error) {
	project := &models.Project{Name: input.Name, Description: input.Description}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	s.logger.Info("Project created", zap.Int64("project_id", project.ID), zap.String("name", project.Name))
	return project, nil
}

func (s *projectService) DeleteProject(ctx context.Context, projectID int64) error {
	deleted, err := s.projects.DeleteProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if !deleted {
		return ErrProjectNotFound
	}
	s.logger.Info("Project deleted", zap.Int64("project_id", projectID))
	return nil
}

func (s *projectService) ListProjects(ctx context.Context, actor models.Actor) ([]*models.Project, error) {
	if actor.IsAdmin {
		return s.projects.ListProjects(ctx)
	}
	return s.projects.ListProjectsForUser(ctx, actor.UserID)
}

func (s *projectService) GetProject(ctx context.Context, actor models.Actor, projectID int64) (*models.Project, error) {
	return s.authorize(ctx, actor, projectID)
}

func (s *projectService) authorize(ctx context.Context, actor models.Actor, projectID int64) (*models.Project, error) {
	return authorizeProject(ctx, s.projects, actor, projectID)
}

// authorizeProject loads a project and checks that the actor is an admin or
// is assigned to it.
func authorizeProject(ctx context.Context, projects repository.ProjectRepository, actor models.Actor, projectID int64) (*models.Project, error) {
	project, err := projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if actor.IsAdmin {
		return project, nil
	}

	assigned, err := projects.IsAssigned(ctx, projectID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check project assignment: %w", err)
	}
	if !assigned {
		return nil, ErrForbidden
	}
	return project, nil
}

func (s *projectService) AssignUser(ctx context.Context, projectID, userID int64) error {
	if err := s.mustExist(ctx, projectID, userID); err != nil {
		return err
	}

	assigned, err := s.projects.IsAssigned(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to check project assignment: %w", err)
	}
	if assigned {
		return ErrAlreadyAssigned
	}

	if err := s.projects.AssignUser(ctx, projectID, userID); err != nil {
		return fmt.Errorf("failed to assign user to project: %w", err)
	}
	s.logger.Info("User assigned to project", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	return nil
}

func (s *projectService) UnassignUser(ctx context.Context, projectID, userID int64) error {
	if err := s.mustExist(ctx, projectID, userID); err != nil {
		return err
	}

	removed, err := s.projects.UnassignUser(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user from project: %w", err)
	}
	if !removed {
		return ErrNotAssigned
	}
	s.logger.Info("User removed from project", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	return nil
}

func (s *projectService) mustExist(ctx context.Context, projectID, userID int64) error {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return ErrProjectNotFound
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return nil
}

func (s *projectService) ListProjectUsers(ctx context.Context, actor models.Actor, projectID int64) ([]*models.User, error) {
	if _, err := s.authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListProjectUsers(ctx, projectID)
}

func (s *projectService) ListChatRooms(ctx context.Context, actor models.Actor, projectID int64) ([]*models.ChatRoom, error) {
	if _, err := s.authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.rooms.ListChatRoomsByProject(ctx, projectID)
}

func (s *projectService) GetChatRoom(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) (*models.ChatRoom, error) {
	if _, err := s.authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetChatRoomByID(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	if room == nil || room.ProjectID != projectID {
		return nil, ErrChatRoomNotFound
	}
	return room, nil
}

func (s *projectService) ListMessages(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) ([]*models.ChatMessage, error) {
	if _, err := s.GetChatRoom(ctx, actor, projectID, chatRoomID); err != nil {
		return nil, err
	}
	return s.messages.ListMessagesByChatRoom(ctx, chatRoomID)
}
