package models

import "time"

type ChatRoom struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	ProjectID   int64     `db:"project_id" json:"project_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Computed by list queries
	MessageCount int `db:"message_count" json:"message_count"`
}

// ChatMessage is one turn of a chat room transcript. TurnID is unique
// within a room and is the identifier annotators see.
type ChatMessage struct {
	ID          int64     `db:"id" json:"id"`
	TurnID      string    `db:"turn_id" json:"turn_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	TurnText    string    `db:"turn_text" json:"turn_text"`
	ReplyToTurn *string   `db:"reply_to_turn" json:"reply_to_turn"`
	ChatRoomID  int64     `db:"chat_room_id" json:"chat_room_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
