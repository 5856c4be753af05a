package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/89hikari/telegram-clone-backend/internal/middleware"
	"github.com/89hikari/telegram-clone-backend/internal/service"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// maxAvatarBytes caps the upload body before it is buffered; the service
// enforces the same limit on the decoded blob.
const maxAvatarBytes = 2 << 20

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) Search(c *gin.Context) {
	query := c.Query("search")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	selfID := middleware.UserID(c)

	profiles, err := h.userService.Search(c.Request.Context(), query, limit, selfID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, profiles)
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID := middleware.UserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes)
	avatar, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read avatar body"})
		return
	}

	if err := h.userService.UpdateAvatar(c.Request.Context(), userID, avatar); err != nil {
		h.log.Warn("Avatar upload failed", "error", err, "user_id", userID)
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.log.Info("Avatar updated", "user_id", userID, "size", len(avatar))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *UserHandler) GetAvatar(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	avatar, err := h.userService.GetAvatar(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(avatar), avatar)
}
