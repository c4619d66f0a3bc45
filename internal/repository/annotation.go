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

type AnnotationRepository interface {
	CreateAnnotation(ctx context.Context, ann *models.Annotation) error
	// UpsertAnnotations writes a batch in one transaction, replacing the
	// thread of any message the annotator had already labeled.
	UpsertAnnotations(ctx context.Context, anns []*models.Annotation) error
	GetAnnotationByID(ctx context.Context, id int64) (*models.Annotation, error)
	GetAnnotationByMessageAndAnnotator(ctx context.Context, messageID, annotatorID int64) (*models.Annotation, error)
	DeleteAnnotation(ctx context.Context, id int64) error
	ListAnnotationsByMessage(ctx context.Context, messageID int64) ([]*models.Annotation, error)
	ListAnnotationsByChatRoom(ctx context.Context, chatRoomID int64) ([]*models.Annotation, error)
	ListAnnotationsByAnnotator(ctx context.Context, projectID, annotatorID int64) ([]*models.Annotation, error)
}

type annotationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAnnotationRepository(db *sqlx.DB, logger *zap.Logger) AnnotationRepository {
	return &annotationRepository{db: db, logger: logger}
}

const annotationSelect = `
	SELECT a.id, a.message_id, a.annotator_id, a.project_id, a.thread_id, a.created_at, a.updated_at,
	       m.turn_id, u.email AS annotator_email
	FROM annotations a
	JOIN chat_messages m ON m.id = a.message_id
	JOIN users u ON u.id = a.annotator_id`

func (r *annotationRepository) CreateAnnotation(ctx context.Context, ann *models.Annotation) error {
	now := time.Now().UTC()
	ann.CreatedAt, ann.UpdatedAt = now, now
	query := r.db.Rebind(`
		INSERT INTO annotations (message_id, annotator_id, project_id, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, query, ann.MessageID, ann.AnnotatorID, ann.ProjectID, ann.ThreadID, now, now).Scan(&ann.ID)
}

func (r *annotationRepository) UpsertAnnotations(ctx context.Context, anns []*models.Annotation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	query := tx.Rebind(`
		INSERT INTO annotations (message_id, annotator_id, project_id, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id, annotator_id)
		DO UPDATE SET thread_id = excluded.thread_id, updated_at = excluded.updated_at`)
	for _, ann := range anns {
		ann.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query, ann.MessageID, ann.AnnotatorID, ann.ProjectID, ann.ThreadID, now, now); err != nil {
			return fmt.Errorf("upsert annotation for message %d: %w", ann.MessageID, err)
		}
	}

	return tx.Commit()
}

func (r *annotationRepository) GetAnnotationByID(ctx context.Context, id int64) (*models.Annotation, error) {
	return r.getOne(ctx, annotationSelect+` WHERE a.id = ?`, id)
}

func (r *annotationRepository) GetAnnotationByMessageAndAnnotator(ctx context.Context, messageID, annotatorID int64) (*models.Annotation, error) {
	return r.getOne(ctx, annotationSelect+` WHERE a.message_id = ? AND a.annotator_id = ?`, messageID, annotatorID)
}

func (r *annotationRepository) getOne(ctx context.Context, query string, args ...any) (*models.Annotation, error) {
	var ann models.Annotation
	err := r.db.GetContext(ctx, &ann, r.db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ann, nil
}

func (r *annotationRepository) DeleteAnnotation(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM annotations WHERE id = ?`), id)
	return err
}

func (r *annotationRepository) ListAnnotationsByMessage(ctx context.Context, messageID int64) ([]*models.Annotation, error) {
	return r.list(ctx, annotationSelect+` WHERE a.message_id = ? ORDER BY a.annotator_id`, messageID)
}

func (r *annotationRepository) ListAnnotationsByChatRoom(ctx context.Context, chatRoomID int64) ([]*models.Annotation, error) {
	return r.list(ctx, annotationSelect+` WHERE m.chat_room_id = ? ORDER BY a.message_id, a.annotator_id`, chatRoomID)
}

func (r *annotationRepository) ListAnnotationsByAnnotator(ctx context.Context, projectID, annotatorID int64) ([]*models.Annotation, error) {
	return r.list(ctx, annotationSelect+` WHERE a.project_id = ? AND a.annotator_id = ? ORDER BY a.message_id`, projectID, annotatorID)
}

func (r *annotationRepository) list(ctx context.Context, query string, args ...any) ([]*models.Annotation, error) {
	anns := []*models.Annotation{}
	if err := r.db.SelectContext(ctx, &anns, r.db.Rebind(query), args...); err != nil {
		r.logger.Error("Failed to list annotations", zap.Error(err))
		return nil, err
	}
	return anns, nil
}
