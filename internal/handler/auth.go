package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/89hikari/telegram-clone-backend/internal/service"
	"github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type AuthHandler struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthHandler(authService service.AuthService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Gender   string `json:"gender"`
}

type LoginRequest struct {
	// Login matches either email or name.
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Gender)
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "email", req.Email)
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.log.Info("User registered successfully", "user_id", user.ID, "name", user.Name)
	c.JSON(http.StatusCreated, user.Profile())
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid login request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.log.Warn("Login failed", "error", err, "login", req.Login)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("User logged in successfully", "user_id", response.ID, "name", response.Name)
	c.JSON(http.StatusOK, response)
}
