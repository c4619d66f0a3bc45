package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fabiofalopes/ann-tfc/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MessageRepository interface {
	GetMessageByID(ctx context.Context, id int64) (*models.ChatMessage, error)
	// ListMessagesByChatRoom returns the transcript in canonical (insertion) order.
	ListMessagesByChatRoom(ctx context.Context, chatRoomID int64) ([]*models.ChatMessage, error)
	// GetProjectIDForMessage resolves the project a message belongs to.
	GetProjectIDForMessage(ctx context.Context, messageID int64) (int64, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const messageColumns = `id, turn_id, user_id, turn_text, reply_to_turn, chat_room_id, created_at`

func (r *messageRepository) GetMessageByID(ctx context.Context, id int64) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListMessagesByChatRoom(ctx context.Context, chatRoomID int64) ([]*models.ChatMessage, error) {
	messages := []*models.ChatMessage{}
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM chat_messages WHERE chat_room_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &messages, query, chatRoomID); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) GetProjectIDForMessage(ctx context.Context, messageID int64) (int64, error) {
	var projectID int64
	query := r.db.Rebind(`
		SELECT c.project_id
		FROM chat_messages m
		JOIN chat_rooms c ON c.id = m.chat_room_id
		WHERE m.id = ?`)
	if err := r.db.GetContext(ctx, &projectID, query, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return projectID, nil
}
