package handler

import (
	"net/http"

	"github.com/fabiofalopes/ann-tfc/internal/middleware"
	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnnotationHandler interface {
	ListMyAnnotations(c *gin.Context)
	ListMessageAnnotations(c *gin.Context)
	CreateAnnotation(c *gin.Context)
	DeleteAnnotation(c *gin.Context)
	ListChatRoomAnnotations(c *gin.Context)
}

type annotationHandler struct {
	annotations service.AnnotationService
	logger      *zap.Logger
}

func NewAnnotationHandler(annotations service.AnnotationService, logger *zap.Logger) AnnotationHandler {
	return &annotationHandler{annotations: annotations, logger: logger}
}

// ListMyAnnotations handles GET /projects/:project_id/annotations/my
func (h *annotationHandler) ListMyAnnotations(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	anns, err := h.annotations.ListMyAnnotations(c.Request.Context(), actor, projectID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve annotations")
		return
	}
	c.JSON(http.StatusOK, anns)
}

// ListMessageAnnotations handles GET /projects/:project_id/messages/:message_id/annotations
func (h *annotationHandler) ListMessageAnnotations(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	anns, err := h.annotations.ListMessageAnnotations(c.Request.Context(), actor, projectID, messageID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve annotations")
		return
	}
	c.JSON(http.StatusOK, anns)
}

// CreateAnnotation handles POST /projects/:project_id/messages/:message_id/annotations
func (h *annotationHandler) CreateAnnotation(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	var input models.CreateAnnotationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	ann, err := h.annotations.CreateAnnotation(c.Request.Context(), actor, projectID, messageID, input.ThreadID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create annotation")
		return
	}
	c.JSON(http.StatusCreated, ann)
}

// DeleteAnnotation handles DELETE /projects/:project_id/messages/:message_id/annotations/:annotation_id
func (h *annotationHandler) DeleteAnnotation(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}
	annotationID, ok := paramID(c, "annotation_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	if err := h.annotations.DeleteAnnotation(c.Request.Context(), actor, projectID, messageID, annotationID); err != nil {
		respondError(c, h.logger, err, "Failed to delete annotation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Annotation deleted successfully"})
}

// ListChatRoomAnnotations handles GET /projects/:project_id/chat-rooms/:room_id/annotations
func (h *annotationHandler) ListChatRoomAnnotations(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	anns, err := h.annotations.ListChatRoomAnnotations(c.Request.Context(), actor, projectID, roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve annotations")
		return
	}
	c.JSON(http.StatusOK, anns)
}
