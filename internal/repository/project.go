package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fabiofalopes/ann-tfc/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProjectByID(ctx context.Context, id int64) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	ListProjectsForUser(ctx context.Context, userID int64) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id int64) (bool, error)

	AssignUser(ctx context.Context, projectID, userID int64) error
	UnassignUser(ctx context.Context, projectID, userID int64) (bool, error)
	IsAssigned(ctx context.Context, projectID, userID int64) (bool, error)
	// ListProjectUsers returns the users assigned to a project in id order.
	ListProjectUsers(ctx context.Context, projectID int64) ([]*models.User, error)
}

type projectRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewProjectRepository(db *sqlx.DB, logger *zap.Logger) ProjectRepository {
	return &projectRepository{db: db, logger: logger}
}

const projectColumns = `p.id, p.name, p.description, p.created_at, p.updated_at`

func (r *projectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	project.CreatedAt, project.UpdatedAt = now, now
	query := r.db.Rebind(`INSERT INTO projects (name, description, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, query, project.Name, project.Description, now, now).Scan(&project.ID)
}

func (r *projectRepository) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	query := r.db.Rebind(`SELECT ` + projectColumns + ` FROM projects p WHERE p.id = ?`)
	err := r.db.GetContext(ctx, &project, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListProjects(ctx context.Context) ([]*models.Project, error) {
	projects := []*models.Project{}
	err := r.db.SelectContext(ctx, &projects, `SELECT `+projectColumns+` FROM projects p ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) ListProjectsForUser(ctx context.Context, userID int64) ([]*models.Project, error) {
	projects := []*models.Project{}
	query := r.db.Rebind(`
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN project_assignments pa ON pa.project_id = p.id
		WHERE pa.user_id = ?
		ORDER BY p.id`)
	if err := r.db.SelectContext(ctx, &projects, query, userID); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) DeleteProject(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *projectRepository) AssignUser(ctx context.Context, projectID, userID int64) error {
	query := r.db.Rebind(`INSERT INTO project_assignments (user_id, project_id) VALUES (?, ?)`)
	_, err := r.db.ExecContext(ctx, query, userID, projectID)
	return err
}

func (r *projectRepository) UnassignUser(ctx context.Context, projectID, userID int64) (bool, error) {
	query := r.db.Rebind(`DELETE FROM project_assignments WHERE user_id = ? AND project_id = ?`)
	res, err := r.db.ExecContext(ctx, query, userID, projectID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *projectRepository) IsAssigned(ctx context.Context, projectID, userID int64) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM project_assignments WHERE user_id = ? AND project_id = ?`)
	if err := r.db.GetContext(ctx, &count, query, userID, projectID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *projectRepository) ListProjectUsers(ctx context.Context, projectID int64) ([]*models.User, error) {
	users := []*models.User{}
	query := r.db.Rebind(`
		SELECT u.id, u.email, u.password_hash, u.is_admin, u.created_at
		FROM users u
		JOIN project_assignments pa ON pa.user_id = u.id
		WHERE pa.project_id = ?
		ORDER BY u.id`)
	if err := r.db.SelectContext(ctx, &users, query, projectID); err != nil {
		return nil, err
	}
	return users, nil
}
