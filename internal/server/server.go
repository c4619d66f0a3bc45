package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fabiofalopes/ann-tfc/internal/config"
	"github.com/fabiofalopes/ann-tfc/internal/handler"
	"github.com/fabiofalopes/ann-tfc/internal/middleware"
	"github.com/fabiofalopes/ann-tfc/internal/repository"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	cfg    *config.Config
	logger *zap.Logger

	auth service.AuthService
}

func NewServer(db *sqlx.DB, cfg *config.Config, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.CORS(cfg.Server.CORSOrigins))

	s := &Server{
		router: router,
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	users := repository.NewUserRepository(s.db, s.logger)
	projects := repository.NewProjectRepository(s.db, s.logger)
	rooms := repository.NewChatRoomRepository(s.db, s.logger)
	messages := repository.NewMessageRepository(s.db, s.logger)
	annotations := repository.NewAnnotationRepository(s.db, s.logger)

	s.auth = service.NewAuthService(users, []byte(s.cfg.Auth.JWTSecret),
		time.Duration(s.cfg.Auth.AccessTokenMinutes)*time.Minute,
		time.Duration(s.cfg.Auth.RefreshTokenDays)*24*time.Hour,
		s.logger)
	userService := service.NewUserService(users, s.logger)
	projectService := service.NewProjectService(projects, users, rooms, messages, s.logger)
	annotationService := service.NewAnnotationService(annotations, messages, projects, rooms, s.logger)
	analysisService := service.NewAnalysisService(rooms, messages, projects, annotations, s.logger)
	importService := service.NewImportService(projects, users, rooms, messages, annotations, s.logger)

	authHandler := handler.NewAuthHandler(s.auth, userService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, s.logger)
	annotationHandler := handler.NewAnnotationHandler(annotationService, s.logger)
	adminHandler := handler.NewAdminHandler(s.auth, userService, projectService, importService, analysisService,
		s.cfg.Import.MaxUploadBytes, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	authGroup := s.router.Group("/auth")
	authGroup.POST("/token", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/register", authHandler.Register)

	authRequired := s.router.Group("/")
	authRequired.Use(middleware.AuthMiddleware(s.auth, s.logger))
	authRequired.GET("/auth/me", authHandler.Me)

	projectGroup := authRequired.Group("/projects")
	{
		projectGroup.GET("/", projectHandler.ListProjects)
		projectGroup.GET("/:project_id", projectHandler.GetProject)
		projectGroup.GET("/:project_id/users", projectHandler.ListProjectUsers)
		projectGroup.GET("/:project_id/chat-rooms", projectHandler.ListChatRooms)
		projectGroup.GET("/:project_id/chat-rooms/:room_id", projectHandler.GetChatRoom)
		projectGroup.GET("/:project_id/chat-rooms/:room_id/messages", projectHandler.ListMessages)
		projectGroup.GET("/:project_id/chat-rooms/:room_id/annotations", annotationHandler.ListChatRoomAnnotations)
		projectGroup.GET("/:project_id/annotations/my", annotationHandler.ListMyAnnotations)
		projectGroup.GET("/:project_id/messages/:message_id/annotations", annotationHandler.ListMessageAnnotations)
		projectGroup.POST("/:project_id/messages/:message_id/annotations", annotationHandler.CreateAnnotation)
		projectGroup.DELETE("/:project_id/messages/:message_id/annotations/:annotation_id", annotationHandler.DeleteAnnotation)
		projectGroup.POST("/:project_id/assign/:user_id", middleware.RequireAdmin(), adminHandler.AssignUser)
		projectGroup.DELETE("/:project_id/assign/:user_id", middleware.RequireAdmin(), adminHandler.UnassignUser)
	}

	adminGroup := authRequired.Group("/admin")
	adminGroup.Use(middleware.RequireAdmin())
	{
		adminGroup.GET("/users", adminHandler.ListUsers)
		adminGroup.POST("/users", adminHandler.CreateUser)
		adminGroup.DELETE("/users/:user_id", adminHandler.DeleteUser)

		adminGroup.GET("/projects", adminHandler.ListProjects)
		adminGroup.POST("/projects", adminHandler.CreateProject)
		adminGroup.DELETE("/projects/:project_id", adminHandler.DeleteProject)
		adminGroup.POST("/projects/:project_id/assign/:user_id", adminHandler.AssignUser)
		adminGroup.DELETE("/projects/:project_id/assign/:user_id", adminHandler.UnassignUser)
		adminGroup.POST("/projects/:project_id/import-chat-room-csv", adminHandler.ImportChatRoomCSV)

		adminGroup.POST("/chat-rooms/:room_id/import-annotations", adminHandler.ImportAnnotations)
		adminGroup.GET("/chat-rooms/:room_id/aggregated-annotations", adminHandler.AggregatedAnnotations)
		adminGroup.GET("/chat-rooms/:room_id/iaa", adminHandler.ChatRoomIAA)
		adminGroup.GET("/chat-rooms/:room_id/export", adminHandler.ExportChatRoom)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Bootstrap creates the first admin account when the database has no users.
func (s *Server) Bootstrap(ctx context.Context) error {
	return s.auth.EnsureFirstAdmin(ctx, s.cfg.Auth.FirstAdminEmail, s.cfg.Auth.FirstAdminPassword)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("Server exited")
	return nil
}
