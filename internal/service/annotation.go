package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"go.uber.org/zap"
)

type AnnotationService interface {
	CreateAnnotation(ctx context.Context, actor models.Actor, projectID, messageID int64, threadID string) (*models.Annotation, error)
	DeleteAnnotation(ctx context.Context, actor models.Actor, projectID, messageID, annotationID int64) error
	ListMyAnnotations(ctx context.Context, actor models.Actor, projectID int64) ([]*models.Annotation, error)
	ListMessageAnnotations(ctx context.Context, actor models.Actor, projectID, messageID int64) ([]*models.Annotation, error)
	ListChatRoomAnnotations(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) ([]*models.Annotation, error)
}

type annotationService struct {
	annotations repository.AnnotationRepository
	messages    repository.MessageRepository
	projects    repository.ProjectRepository
	rooms       repository.ChatRoomRepository
	logger      *zap.Logger
}

func NewAnnotationService(
	annotations repository.AnnotationRepository,
	messages repository.MessageRepository,
	projects repository.ProjectRepository,
	rooms repository.ChatRoomRepository,
	logger *zap.Logger,
) AnnotationService {
	return &annotationService{
		annotations: annotations,
		messages:    messages,
		projects:    projects,
		rooms:       rooms,
		logger:      logger,
	}
}

// messageInProject checks project access and that the message belongs to one
// of the project's chat rooms.
func (s *annotationService) messageInProject(ctx context.Context, actor models.Actor, projectID, messageID int64) error {
	if _, err := authorizeProject(ctx, s.projects, actor, projectID); err != nil {
		return err
	}

	owner, err := s.messages.GetProjectIDForMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if owner == 0 || owner != projectID {
		return ErrMessageNotFound
	}
	return nil
}

func (s *annotationService) CreateAnnotation(ctx context.Context, actor models.Actor, projectID, messageID int64, threadID string) (*models.Annotation, error) {
	if err := s.messageInProject(ctx, actor, projectID, messageID); err != nil {
		return nil, err
	}

	existing, err := s.annotations.GetAnnotationByMessageAndAnnotator(ctx, messageID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing annotation: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyAnnotated
	}

	ann := &models.Annotation{
		MessageID:   messageID,
		AnnotatorID: actor.UserID,
		ProjectID:   projectID,
		ThreadID:    strings.TrimSpace(threadID),
	}
	if err := s.annotations.CreateAnnotation(ctx, ann); err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}

	s.logger.Debug("Annotation created",
		zap.Int64("annotation_id", ann.ID),
		zap.Int64("message_id", messageID),
		zap.Int64("annotator_id", actor.UserID))
	return ann, nil
}

func (s *annotationService) DeleteAnnotation(ctx context.Context, actor models.Actor, projectID, messageID, annotationID int64) error {
	if err := s.messageInProject(ctx, actor, projectID, messageID); err != nil {
		return err
	}

	ann, err := s.annotations.GetAnnotationByID(ctx, annotationID)
	if err != nil {
		return fmt.Errorf("failed to get annotation: %w", err)
	}
	if ann == nil || ann.MessageID != messageID {
		return ErrAnnotationNotFound
	}
	if ann.AnnotatorID != actor.UserID && !actor.IsAdmin {
		return ErrForbidden
	}

	if err := s.annotations.DeleteAnnotation(ctx, annotationID); err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return nil
}

func (s *annotationService) ListMyAnnotations(ctx context.Context, actor models.Actor, projectID int64) ([]*models.Annotation, error) {
	if _, err := authorizeProject(ctx, s.projects, actor, projectID); err != nil {
		return nil, err
	}
	return s.annotations.ListAnnotationsByAnnotator(ctx, projectID, actor.UserID)
}

func (s *annotationService) ListMessageAnnotations(ctx context.Context, actor models.Actor, projectID, messageID int64) ([]*models.Annotation, error) {
	if err := s.messageInProject(ctx, actor, projectID, messageID); err != nil {
		return nil, err
	}
	return s.annotations.ListAnnotationsByMessage(ctx, messageID)
}

func (s *annotationService) ListChatRoomAnnotations(ctx context.Context, actor models.Actor, projectID, chatRoomID int64) ([]*models.Annotation, error) {
	if _, err := authorizeProject(ctx, s.projects, actor, projectID); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetChatRoomByID(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	if room == nil || room.ProjectID != projectID {
		return nil, ErrChatRoomNotFound
	}
	return s.annotations.ListAnnotationsByChatRoom(ctx, chatRoomID)
}
