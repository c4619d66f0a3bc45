package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/fabiofalopes/ann-tfc/internal/middleware"
	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler interface {
	ListUsers(c *gin.Context)
	CreateUser(c *gin.Context)
	DeleteUser(c *gin.Context)

	ListProjects(c *gin.Context)
	CreateProject(c *gin.Context)
	DeleteProject(c *gin.Context)
	AssignUser(c *gin.Context)
	UnassignUser(c *gin.Context)

	ImportChatRoomCSV(c *gin.Context)
	ImportAnnotations(c *gin.Context)
	AggregatedAnnotations(c *gin.Context)
	ChatRoomIAA(c *gin.Context)
	ExportChatRoom(c *gin.Context)
}

type adminHandler struct {
	auth           service.AuthService
	users          service.UserService
	projects       service.ProjectService
	imports        service.ImportService
	analysis       service.AnalysisService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewAdminHandler(
	auth service.AuthService,
	users service.UserService,
	projects service.ProjectService,
	imports service.ImportService,
	analysis service.AnalysisService,
	maxUploadBytes int64,
	logger *zap.Logger,
) AdminHandler {
	return &adminHandler{
		auth:           auth,
		users:          users,
		projects:       projects,
		imports:        imports,
		analysis:       analysis,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ListUsers handles GET /admin/users
func (h *adminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser handles POST /admin/users
func (h *adminHandler) CreateUser(c *gin.Context) {
	var input models.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// DeleteUser handles DELETE /admin/users/:user_id
func (h *adminHandler) DeleteUser(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	actor, _ := middleware.ActorFromContext(c)

	if err := h.users.DeleteUser(c.Request.Context(), actor, userID); err != nil {
		respondError(c, h.logger, err, "Failed to delete user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// ListProjects handles GET /admin/projects
func (h *adminHandler) ListProjects(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	projects, err := h.projects.ListProjects(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

// CreateProject handles POST /admin/projects
func (h *adminHandler) CreateProject(c *gin.Context) {
	var input models.CreateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

// DeleteProject handles DELETE /admin/projects/:project_id
func (h *adminHandler) DeleteProject(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	if err := h.projects.DeleteProject(c.Request.Context(), projectID); err != nil {
		respondError(c, h.logger, err, "Failed to delete project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// AssignUser handles POST /admin/projects/:project_id/assign/:user_id
func (h *adminHandler) AssignUser(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.projects.AssignUser(c.Request.Context(), projectID, userID); err != nil {
		respondError(c, h.logger, err, "Failed to assign user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User assigned to project successfully"})
}

// UnassignUser handles DELETE /admin/projects/:project_id/assign/:user_id
func (h *adminHandler) UnassignUser(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.projects.UnassignUser(c.Request.Context(), projectID, userID); err != nil {
		respondError(c, h.logger, err, "Failed to remove user from project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User removed from project successfully"})
}

// openUpload returns the multipart "file" field, enforcing the upload limit.
// It writes the error response itself and returns nil on failure.
func (h *adminHandler) openUpload(c *gin.Context) multipart.File {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes)})
			return nil
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A CSV file is required in the 'file' field"})
		return nil
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.String("filename", header.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return nil
	}
	return file
}

// ImportChatRoomCSV handles POST /admin/projects/:project_id/import-chat-room-csv
func (h *adminHandler) ImportChatRoomCSV(c *gin.Context) {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return
	}
	file := h.openUpload(c)
	if file == nil {
		return
	}
	defer file.Close()

	result, err := h.imports.ImportChatRoomCSV(c.Request.Context(), projectID, c.PostForm("name"), file)
	if err != nil {
		respondError(c, h.logger, err, "Failed to import chat room")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportAnnotations handles POST /admin/chat-rooms/:room_id/import-annotations
func (h *adminHandler) ImportAnnotations(c *gin.Context) {
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	file := h.openUpload(c)
	if file == nil {
		return
	}
	defer file.Close()

	userID, err := strconv.ParseInt(c.PostForm("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	result, err := h.imports.ImportAnnotationsCSV(c.Request.Context(), roomID, userID, file)
	if err != nil {
		respondError(c, h.logger, err, "Failed to import annotations")
		return
	}
	c.JSON(http.StatusOK, result)
}

// AggregatedAnnotations handles GET /admin/chat-rooms/:room_id/aggregated-annotations
func (h *adminHandler) AggregatedAnnotations(c *gin.Context) {
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	agg, err := h.analysis.AggregatedAnnotations(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to aggregate annotations")
		return
	}
	c.JSON(http.StatusOK, agg)
}

// ChatRoomIAA handles GET /admin/chat-rooms/:room_id/iaa
func (h *adminHandler) ChatRoomIAA(c *gin.Context) {
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	report, err := h.analysis.AnalyzeChatRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute inter-annotator agreement")
		return
	}
	c.JSON(http.StatusOK, report)
}

// ExportChatRoom handles GET /admin/chat-rooms/:room_id/export
func (h *adminHandler) ExportChatRoom(c *gin.Context) {
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	export, err := h.analysis.ExportChatRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to export chat room")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=chat_room_%d_export.json", roomID))
	c.JSON(http.StatusOK, export)
}
