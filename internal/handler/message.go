package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/89hikari/telegram-clone-backend/internal/middleware"
	"github.com/89hikari/telegram-clone-backend/internal/service"
	"github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type MessageHandler struct {
	messageService service.MessageService
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

type SendMessageRequest struct {
	ReceiverID int64  `json:"receiverId" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

type EditMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// LastMessages returns one row per conversation the caller takes part in,
// direct and group merged, newest first.
func (h *MessageHandler) LastMessages(c *gin.Context) {
	userID := middleware.UserID(c)

	messages, err := h.messageService.LastMessages(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to aggregate conversations", "error", err, "user_id", userID)
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) History(c *gin.Context) {
	userID := middleware.UserID(c)

	peerID, err := strconv.ParseInt(c.Param("peerId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.messageService.History(c.Request.Context(), userID, peerID, limit)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID := middleware.UserID(c)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.messageService.Send(c.Request.Context(), userID, req.ReceiverID, req.Message)
	if err != nil {
		h.log.Warn("Message send failed", "error", err, "sender_id", userID, "receiver_id", req.ReceiverID)
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID := middleware.UserID(c)

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.messageService.Edit(c.Request.Context(), userID, messageID, req.Message)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, message)
}
