package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// threadColumns are the accepted names of the thread column in annotation
// files, in order of preference.
var threadColumns = []string{"thread_id", "thread_column", "thread"}

type ImportService interface {
	// ImportChatRoomCSV creates a chat room in the project from a transcript
	// with header-named columns user_id, turn_id, turn_text and an optional
	// reply_to_turn, in any order.
	ImportChatRoomCSV(ctx context.Context, projectID int64, name string, r io.Reader) (*models.ImportResult, error)
	// ImportAnnotationsCSV stores one annotator's thread labels for a room.
	// Existing labels for the same messages are overwritten.
	ImportAnnotationsCSV(ctx context.Context, chatRoomID, userID int64, r io.Reader) (*models.ImportResult, error)
}

type importService struct {
	projects    repository.ProjectRepository
	users       repository.UserRepository
	rooms       repository.ChatRoomRepository
	messages    repository.MessageRepository
	annotations repository.AnnotationRepository
	logger      *zap.Logger
}

func NewImportService(
	projects repository.ProjectRepository,
	users repository.UserRepository,
	rooms repository.ChatRoomRepository,
	messages repository.MessageRepository,
	annotations repository.AnnotationRepository,
	logger *zap.Logger,
) ImportService {
	return &importService{
		projects:    projects,
		users:       users,
		rooms:       rooms,
		messages:    messages,
		annotations: annotations,
		logger:      logger,
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyImport
	}
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	return records, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (s *importService) ImportChatRoomCSV(ctx context.Context, projectID int64, name string, r io.Reader) (*models.ImportResult, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: chat room name is required", ErrInvalidCSV)
	}

	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	cols, err := chatRoomColumns(records[0])
	if err != nil {
		return nil, err
	}
	rows := records[1:]

	// Replies may point forward, so collect every turn in the file first.
	turns := make(map[string]struct{}, len(rows))
	for _, rec := range rows {
		if t := field(rec, cols.turnID); t != "" {
			turns[t] = struct{}{}
		}
	}

	result := &models.ImportResult{
		BatchID:   uuid.NewString(),
		TotalRows: len(rows),
		Errors:    []string{},
	}
	seen := make(map[string]struct{}, len(rows))
	messages := make([]*models.ChatMessage, 0, len(rows))

	for i, rec := range rows {
		// Row numbers count the header as row 1.
		rowNum := i + 2

		userID := field(rec, cols.userID)
		turnID := field(rec, cols.turnID)
		turnText := field(rec, cols.turnText)
		if userID == "" || turnID == "" || turnText == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Missing required value (user_id, turn_id, or turn_text)", rowNum))
			continue
		}
		if _, dup := seen[turnID]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Duplicate turn_id %q", rowNum, turnID))
			continue
		}
		seen[turnID] = struct{}{}

		var replyTo *string
		if reply := field(rec, cols.replyToTurn); reply != "" {
			if _, ok := turns[reply]; ok {
				replyTo = &reply
			}
		}

		messages = append(messages, &models.ChatMessage{
			TurnID:      turnID,
			UserID:      userID,
			TurnText:    turnText,
			ReplyToTurn: replyTo,
		})
	}

	result.ImportedCount = len(messages)
	result.SkippedCount = result.TotalRows - result.ImportedCount
	if len(messages) == 0 {
		result.Message = "No valid messages found"
		return result, nil
	}

	room := &models.ChatRoom{Name: name, ProjectID: projectID}
	if err := s.rooms.CreateChatRoomWithMessages(ctx, room, messages); err != nil {
		return nil, fmt.Errorf("failed to create chat room: %w", err)
	}
	result.ChatRoomID = room.ID
	result.Message = "Import completed"

	s.logger.Info("Chat room imported",
		zap.String("batch_id", result.BatchID),
		zap.Int64("project_id", projectID),
		zap.Int64("chat_room_id", room.ID),
		zap.Int("imported", result.ImportedCount),
		zap.Int("skipped", result.SkippedCount))
	return result, nil
}

func (s *importService) ImportAnnotationsCSV(ctx context.Context, chatRoomID, userID int64, r io.Reader) (*models.ImportResult, error) {
	room, err := s.rooms.GetChatRoomByID(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	if room == nil {
		return nil, ErrChatRoomNotFound
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	turnCol, threadCol, err := annotationColumns(records[0])
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListMessagesByChatRoom(ctx, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	byTurn := make(map[string]int64, len(msgs))
	for _, m := range msgs {
		byTurn[m.TurnID] = m.ID
	}

	rows := records[1:]
	result := &models.ImportResult{
		BatchID:    uuid.NewString(),
		ChatRoomID: chatRoomID,
		TotalRows:  len(rows),
		Errors:     []string{},
	}
	seen := make(map[string]struct{}, len(rows))
	anns := make([]*models.Annotation, 0, len(rows))

	for i, rec := range rows {
		rowNum := i + 2
		turnID := field(rec, turnCol)
		threadID := field(rec, threadCol)
		// Unlabelled turns are left for the annotator to finish.
		if turnID == "" || threadID == "" {
			continue
		}

		messageID, ok := byTurn[turnID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Unknown turn_id %q", rowNum, turnID))
			continue
		}
		if _, dup := seen[turnID]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Duplicate turn_id %q", rowNum, turnID))
			continue
		}
		seen[turnID] = struct{}{}

		anns = append(anns, &models.Annotation{
			MessageID:   messageID,
			AnnotatorID: userID,
			ProjectID:   room.ProjectID,
			ThreadID:    threadID,
		})
	}

	result.ImportedCount = len(anns)
	result.SkippedCount = result.TotalRows - result.ImportedCount
	if len(anns) == 0 {
		result.Message = "No valid annotations found"
		return result, nil
	}

	// Imported labels only count towards agreement for assigned annotators.
	assigned, err := s.projects.IsAssigned(ctx, room.ProjectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check project assignment: %w", err)
	}
	if !assigned {
		if err := s.projects.AssignUser(ctx, room.ProjectID, userID); err != nil {
			return nil, fmt.Errorf("failed to assign user to project: %w", err)
		}
		s.logger.Info("User assigned to project by annotation import",
			zap.Int64("project_id", room.ProjectID), zap.Int64("user_id", userID))
	}

	if err := s.annotations.UpsertAnnotations(ctx, anns); err != nil {
		return nil, fmt.Errorf("failed to store annotations: %w", err)
	}
	result.Message = "Import completed"

	s.logger.Info("Annotations imported",
		zap.String("batch_id", result.BatchID),
		zap.Int64("chat_room_id", chatRoomID),
		zap.Int64("annotator_id", userID),
		zap.Int("imported", result.ImportedCount),
		zap.Int("skipped", result.SkippedCount))
	return result, nil
}

// headerIndex maps lower-cased column names to their position. The first
// occurrence of a repeated name wins.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	return index
}

// transcriptColumns holds column positions of a chat room file.
// replyToTurn is -1 when the file has no such column.
type transcriptColumns struct {
	userID, turnID, turnText, replyToTurn int
}

// chatRoomColumns finds the transcript columns by header name,
// case-insensitively. Other columns are ignored.
func chatRoomColumns(header []string) (transcriptColumns, error) {
	index := headerIndex(header)

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	cols := transcriptColumns{
		userID:   lookup("user_id"),
		turnID:   lookup("turn_id"),
		turnText: lookup("turn_text"),
	}
	if len(missing) > 0 {
		return transcriptColumns{}, fmt.Errorf("%w: missing required columns: %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}

	cols.replyToTurn = -1
	if i, ok := index["reply_to_turn"]; ok {
		cols.replyToTurn = i
	}
	return cols, nil
}

// annotationColumns finds the turn and thread columns by header name,
// case-insensitively.
func annotationColumns(header []string) (turnCol, threadCol int, err error) {
	index := headerIndex(header)

	turnCol, ok := index["turn_id"]
	if !ok {
		return 0, 0, fmt.Errorf("%w: missing turn_id column", ErrInvalidCSV)
	}
	for _, name := range threadColumns {
		if i, ok := index[name]; ok {
			return turnCol, i, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: missing thread column (%s)", ErrInvalidCSV, strings.Join(threadColumns, ", "))
}

// IsImportError reports whether err was caused by the uploaded file rather
// than the server.
func IsImportError(err error) bool {
	return errors.Is(err, ErrInvalidCSV) || errors.Is(err, ErrEmptyImport)
}
