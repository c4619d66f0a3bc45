package handler

import (
	"net/http"

	"github.com/fabiofalopes/ann-tfc/internal/middleware"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProjectHandler interface {
	ListProjects(c *gin.Context)
	GetProject(c *gin.Context)
	ListProjectUsers(c *gin.Context)
	ListChatRooms(c *gin.Context)
	GetChatRoom(c *gin.Context)
	ListMessages(c *gin.Context)
}

type projectHandler struct {
	projects service.ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects service.ProjectService, logger *zap.Logger) ProjectHandler {
	return &projectHandler{projects: projects, logger: logger}
}

// ListProjects handles GET /projects/
func (h *projectHandler) ListProjects(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	projects, err := h.projects.ListProjects(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProject handles GET /projects/:project_id
func (h *projectHandler) GetProject(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	project, err := h.projects.GetProject(c.Request.Context(), actor, projectID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// ListProjectUsers handles GET /projects/:project_id/users
func (h *projectHandler) ListProjectUsers(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	users, err := h.projects.ListProjectUsers(c.Request.Context(), actor, projectID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve project users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// ListChatRooms handles GET /projects/:project_id/chat-rooms
func (h *projectHandler) ListChatRooms(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	rooms, err := h.projects.ListChatRooms(c.Request.Context(), actor, projectID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve chat rooms")
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetChatRoom handles GET /projects/:project_id/chat-rooms/:room_id
func (h *projectHandler) GetChatRoom(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	room, err := h.projects.GetChatRoom(c.Request.Context(), actor, projectID, roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve chat room")
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListMessages handles GET /projects/:project_id/chat-rooms/:room_id/messages
func (h *projectHandler) ListMessages(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	messages, err := h.projects.ListMessages(c.Request.Context(), actor, projectID, roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}
