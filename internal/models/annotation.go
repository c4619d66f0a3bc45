package models

import "time"

// Annotation assigns one message to a thread in one annotator's view of the
// room. ThreadID is free text chosen by the annotator.
type Annotation struct {
	ID          int64     `db:"id" json:"id"`
	MessageID   int64     `db:"message_id" json:"message_id"`
	AnnotatorID int64     `db:"annotator_id" json:"annotator_id"`
	ProjectID   int64     `db:"project_id" json:"project_id"`
	ThreadID    string    `db:"thread_id" json:"thread_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Joined columns, filled by room-level queries
	TurnID         string `db:"turn_id" json:"turn_id,omitempty"`
	AnnotatorEmail string `db:"annotator_email" json:"annotator_email,omitempty"`
}

type CreateAnnotationInput struct {
	ThreadID string `json:"thread_id" binding:"required"`
}

// ImportResult summarizes a CSV import. Row errors do not abort the import.
type ImportResult struct {
	BatchID       string   `json:"batch_id"`
	Message       string   `json:"message"`
	ChatRoomID    int64    `json:"chat_room_id,omitempty"`
	TotalRows     int      `json:"total_rows"`
	ImportedCount int      `json:"imported_count"`
	SkippedCount  int      `json:"skipped_count"`
	Errors        []string `json:"errors"`
}
