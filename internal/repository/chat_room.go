package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fabiofalopes/ann-tfc/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ChatRoomRepository interface {
	// CreateChatRoomWithMessages inserts a room and its transcript in one
	// transaction. Message order in the slice becomes the canonical order.
	CreateChatRoomWithMessages(ctx context.Context, room *models.ChatRoom, messages []*models.ChatMessage) error
	GetChatRoomByID(ctx context.Context, id int64) (*models.ChatRoom, error)
	ListChatRoomsByProject(ctx context.Context, projectID int64) ([]*models.ChatRoom, error)
}

type chatRoomRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChatRoomRepository(db *sqlx.DB, logger *zap.Logger) ChatRoomRepository {
	return &chatRoomRepository{db: db, logger: logger}
}

func (r *chatRoomRepository) CreateChatRoomWithMessages(ctx context.Context, room *models.ChatRoom, messages []*models.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	roomQuery := tx.Rebind(`INSERT INTO chat_rooms (name, description, project_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, roomQuery, room.Name, room.Description, room.ProjectID, now, now).Scan(&room.ID); err != nil {
		return fmt.Errorf("insert chat room: %w", err)
	}

	msgQuery := tx.Rebind(`INSERT INTO chat_messages (turn_id, user_id, turn_text, reply_to_turn, chat_room_id, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	for _, msg := range messages {
		msg.ChatRoomID = room.ID
		msg.CreatedAt = now
		if err := tx.QueryRowxContext(ctx, msgQuery, msg.TurnID, msg.UserID, msg.TurnText, msg.ReplyToTurn, room.ID, now).Scan(&msg.ID); err != nil {
			return fmt.Errorf("insert message %s: %w", msg.TurnID, err)
		}
	}
	room.MessageCount = len(messages)

	return tx.Commit()
}

func (r *chatRoomRepository) GetChatRoomByID(ctx context.Context, id int64) (*models.ChatRoom, error) {
	var room models.ChatRoom
	query := r.db.Rebind(`
		SELECT c.id, c.name, c.description, c.project_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.chat_room_id = c.id) AS message_count
		FROM chat_rooms c
		WHERE c.id = ?`)
	err := r.db.GetContext(ctx, &room, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (r *chatRoomRepository) ListChatRoomsByProject(ctx context.Context, projectID int64) ([]*models.ChatRoom, error) {
	rooms := []*models.ChatRoom{}
	query := r.db.Rebind(`
		SELECT c.id, c.name, c.description, c.project_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.chat_room_id = c.id) AS message_count
		FROM chat_rooms c
		WHERE c.project_id = ?
		ORDER BY c.id`)
	if err := r.db.SelectContext(ctx, &rooms, query, projectID); err != nil {
		return nil, err
	}
	return rooms, nil
}
