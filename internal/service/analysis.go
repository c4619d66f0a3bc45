package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fabiofalopes/ann-tfc/internal/agreement"
	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"go.uber.org/zap"
)

// MessageThreads is one message together with the thread every annotator
// put it in.
type MessageThreads struct {
	MessageID   int64                  `json:"message_id"`
	TurnID      string                 `json:"turn_id"`
	UserID      string                 `json:"user_id"`
	TurnText    string                 `json:"turn_text"`
	ReplyToTurn *string                `json:"reply_to_turn"`
	Annotations []AnnotatorThreadLabel `json:"annotations"`
}

type AnnotatorThreadLabel struct {
	AnnotatorID    int64  `json:"annotator_id"`
	AnnotatorEmail string `json:"annotator_email"`
	ThreadID       string `json:"thread_id"`
}

type AggregatedAnnotations struct {
	ChatRoomID    int64                 `json:"chat_room_id"`
	ChatRoomName  string                `json:"chat_room_name"`
	TotalMessages int                   `json:"total_messages"`
	Annotators    []agreement.Annotator `json:"annotators"`
	Messages      []MessageThreads      `json:"messages"`
}

type ChatRoomExport struct {
	ExportedAt  time.Time             `json:"exported_at"`
	ChatRoom    *models.ChatRoom      `json:"chat_room"`
	Annotators  []agreement.Annotator `json:"annotators"`
	Messages    []*models.ChatMessage `json:"messages"`
	Annotations []*models.Annotation  `json:"annotations"`
}

type AnalysisService interface {
	// AnalyzeChatRoom computes inter-annotator agreement for a chat room.
	// The roster is every user assigned to the room's project.
	AnalyzeChatRoom(ctx context.Context, chatRoomID int64) (*agreement.Report, error)
	AggregatedAnnotations(ctx context.Context, chatRoomID int64) (*AggregatedAnnotations, error)
	ExportChatRoom(ctx context.Context, chatRoomID int64) (*ChatRoomExport, error)
}

type analysisService struct {
	rooms       repository.ChatRoomRepository
	messages    repository.MessageRepository
	projects    repository.ProjectRepository
	annotations repository.AnnotationRepository
	logger      *zap.Logger
}

func NewAnalysisService(
	rooms repository.ChatRoomRepository,
	messages repository.MessageRepository,
	projects repository.ProjectRepository,
	annotations repository.AnnotationRepository,
	logger *zap.Logger,
) AnalysisService {
	return &analysisService{
		rooms:       rooms,
		messages:    messages,
		projects:    projects,
		annotations: annotations,
		logger:      logger,
	}
}

// roomSnapshot is everything loaded for one room, read once per request.
type roomSnapshot struct {
	room        *models.ChatRoom
	messages    []*models.ChatMessage
	roster      []agreement.Annotator
	annotations []*models.Annotation
}

func (s *analysisService) load(ctx context.Context, chatRoomID int64) (*roomSnapshot, error) {
	room, err := s.rooms.GetChatRoomByID(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	if room == nil {
		return nil, ErrChatRoomNotFound
	}

	messages, err := s.messages.ListMessagesByChatRoom(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	users, err := s.projects.ListProjectUsers(ctx, room.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}
	roster := make([]agreement.Annotator, 0, len(users))
	for _, u := range users {
		roster = append(roster, agreement.Annotator{ID: u.ID, Email: u.Email})
	}

	annotations, err := s.annotations.ListAnnotationsByChatRoom(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}

	return &roomSnapshot{room: room, messages: messages, roster: roster, annotations: annotations}, nil
}

func (s *analysisService) AnalyzeChatRoom(ctx context.Context, chatRoomID int64) (*agreement.Report, error) {
	snap, err := s.load(ctx, chatRoomID)
	if err != nil {
		return nil, err
	}

	messageIDs := make([]string, len(snap.messages))
	for i, m := range snap.messages {
		messageIDs[i] = m.TurnID
	}

	labels := make(map[int64]map[string]string)
	for _, a := range snap.annotations {
		if labels[a.AnnotatorID] == nil {
			labels[a.AnnotatorID] = make(map[string]string)
		}
		labels[a.AnnotatorID][a.TurnID] = a.ThreadID
	}

	report, err := agreement.AnalyzeRoom(agreement.RoomInput{
		RoomID:      snap.room.ID,
		RoomName:    snap.room.Name,
		MessageIDs:  messageIDs,
		Roster:      snap.roster,
		Annotations: labels,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inter-annotator agreement computed",
		zap.Int64("chat_room_id", chatRoomID),
		zap.String("status", string(report.Status)),
		zap.Int("completed", len(report.CompletedAnnotators)),
		zap.Int("pending", len(report.PendingAnnotators)),
		zap.Int("pairs", len(report.PairwiseAccuracies)))
	return report, nil
}

func (s *analysisService) AggregatedAnnotations(ctx context.Context, chatRoomID int64) (*AggregatedAnnotations, error) {
	snap, err := s.load(ctx, chatRoomID)
	if err != nil {
		return nil, err
	}

	byMessage := make(map[int64][]AnnotatorThreadLabel)
	for _, a := range snap.annotations {
		byMessage[a.MessageID] = append(byMessage[a.MessageID], AnnotatorThreadLabel{
			AnnotatorID:    a.AnnotatorID,
			AnnotatorEmail: a.AnnotatorEmail,
			ThreadID:       a.ThreadID,
		})
	}

	out := &AggregatedAnnotations{
		ChatRoomID:    snap.room.ID,
		ChatRoomName:  snap.room.Name,
		TotalMessages: len(snap.messages),
		Annotators:    snap.roster,
		Messages:      make([]MessageThreads, 0, len(snap.messages)),
	}
	for _, m := range snap.messages {
		labels := byMessage[m.ID]
		if labels == nil {
			labels = []AnnotatorThreadLabel{}
		}
		out.Messages = append(out.Messages, MessageThreads{
			MessageID:   m.ID,
			TurnID:      m.TurnID,
			UserID:      m.UserID,
			TurnText:    m.TurnText,
			ReplyToTurn: m.ReplyToTurn,
			Annotations: labels,
		})
	}
	return out, nil
}

func (s *analysisService) ExportChatRoom(ctx context.Context, chatRoomID int64) (*ChatRoomExport, error) {
	snap, err := s.load(ctx, chatRoomID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Chat room exported",
		zap.Int64("chat_room_id", chatRoomID),
		zap.Int("messages", len(snap.messages)),
		zap.Int("annotations", len(snap.annotations)))

	return &ChatRoomExport{
		ExportedAt:  time.Now().UTC(),
		ChatRoom:    snap.room,
		Annotators:  snap.roster,
		Messages:    snap.messages,
		Annotations: snap.annotations,
	}, nil
}
