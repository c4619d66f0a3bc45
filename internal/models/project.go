package models

import "time"

type Project struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectAssignment links an annotator to a project. Everyone assigned to a
// project is expected to annotate each of its chat rooms.
type ProjectAssignment struct {
	ID        int64 `db:"id" json:"id"`
	UserID    int64 `db:"user_id" json:"user_id"`
	ProjectID int64 `db:"project_id" json:"project_id"`
}

type CreateProjectInput struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}
