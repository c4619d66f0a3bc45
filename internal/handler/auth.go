package handler

import (
	"net/http"

	"github.com/fabiofalopes/ann-tfc/internal/middleware"
	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Login(c *gin.Context)
	Refresh(c *gin.Context)
	Register(c *gin.Context)
	Me(c *gin.Context)
}

type authHandler struct {
	auth   service.AuthService
	users  service.UserService
	logger *zap.Logger
}

func NewAuthHandler(auth service.AuthService, users service.UserService, logger *zap.Logger) AuthHandler {
	return &authHandler{auth: auth, users: users, logger: logger}
}

// Login handles POST /auth/token. It takes a JSON body or OAuth2 password
// form fields.
func (h *authHandler) Login(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, h.logger, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh
func (h *authHandler) Refresh(c *gin.Context) {
	var input models.RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err, "Failed to refresh token")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Register handles POST /auth/register. Self-registered accounts are never admins.
func (h *authHandler) Register(c *gin.Context) {
	var input models.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.IsAdmin = false

	user, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err, "Failed to register user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Me handles GET /auth/me
func (h *authHandler) Me(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	user, err := h.users.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, user)
}
