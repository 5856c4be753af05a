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

type GroupHandler struct {
	groupService service.GroupService
	log          logger.Logger
}

func NewGroupHandler(groupService service.GroupService, log logger.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		log:          log,
	}
}

type CreateGroupRequest struct {
	Name      string  `json:"name" binding:"required"`
	MemberIDs []int64 `json:"memberIds"`
}

type AddMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

type SendGroupMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type EditGroupMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	userID := middleware.UserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.log.Warn("Group creation failed", "error", err, "owner_id", userID)
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.log.Info("Group created", "group_id", group.ID, "owner_id", userID)
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	requesterID := middleware.UserID(c)

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	member, err := h.groupService.AddMember(c.Request.Context(), groupID, requesterID, req.UserID)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (h *GroupHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	groups, err := h.groupService.ListGroups(c.Request.Context(), userID)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Messages(c *gin.Context) {
	userID := middleware.UserID(c)

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, err := h.groupService.Messages(c.Request.Context(), groupID, userID, limit)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *GroupHandler) SendMessage(c *gin.Context) {
	userID := middleware.UserID(c)

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.groupService.SendMessage(c.Request.Context(), groupID, userID, req.Message)
	if err != nil {
		h.log.Warn("Group message send failed", "error", err, "group_id", groupID, "sender_id", userID)
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *GroupHandler) EditMessage(c *gin.Context) {
	userID := middleware.UserID(c)

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req EditGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	message, err := h.groupService.EditMessage(c.Request.Context(), userID, messageID, req.Message)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, message)
}
