package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/middleware"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/service"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messages *service.Messages
	query    *service.Query
	logger   *zap.Logger
}

func NewMessageHandler(messages *service.Messages, query *service.Query, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, query: query, logger: logger}
}

// sendMessageRequest names its conversation with exactly one of channel_id
// and group_id. A reply may name neither and inherit its parent's.
type sendMessageRequest struct {
	ChannelID       *uuid.UUID      `json:"channel_id"`
	GroupID         *uuid.UUID      `json:"group_id"`
	ParentMessageID *int64          `json:"parent_message_id" binding:"omitempty,gt=0"`
	Content         string          `json:"content" binding:"max=10000"`
	File            *models.FileRef `json:"file"`
	Mentions        []uuid.UUID     `json:"mentioned_user_ids" binding:"max=100"`
}

// Create handles POST /v1/messages
func (h *MessageHandler) Create(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var target models.Target
	if req.ChannelID != nil || req.GroupID != nil || req.ParentMessageID == nil {
		t, err := models.TargetFromIDs(req.ChannelID, req.GroupID)
		if err != nil {
			respondError(c, h.logger, service.ErrInvalidTarget, "send message")
			return
		}
		target = t
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.GetIdentity(c), service.SendInput{
		Target:          target,
		ParentMessageID: req.ParentMessageID,
		Content:         req.Content,
		File:            req.File,
		Mentions:        req.Mentions,
	})
	if err != nil {
		respondError(c, h.logger, err, "send message")
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/messages
//
//	?channel_id= | ?group_id=      top-level messages of that conversation
//	?parent_message_id=            replies of that thread
//	&before=&limit=&offset=        paging; before is an exclusive id cursor
//	&sender_id=&query=&live=true   narrowing
func (h *MessageHandler) List(c *gin.Context) {
	var (
		f   models.MessageFilter
		err error
	)

	channelID, err := optionalUUIDQuery(c, "channel_id")
	if err != nil {
		badRequest(c, "invalid channel_id")
		return
	}
	groupID, err := optionalUUIDQuery(c, "group_id")
	if err != nil {
		badRequest(c, "invalid group_id")
		return
	}
	if f.ParentID, err = optionalInt64Query(c, "parent_message_id"); err != nil {
		badRequest(c, "invalid parent_message_id")
		return
	}
	if channelID != nil || groupID != nil || f.ParentID == nil {
		if f.Target, err = models.TargetFromIDs(channelID, groupID); err != nil {
			respondError(c, h.logger, service.ErrInvalidTarget, "list messages")
			return
		}
	}

	if f.SenderID, err = optionalUUIDQuery(c, "sender_id"); err != nil {
		badRequest(c, "invalid sender_id")
		return
	}
	before, err := optionalInt64Query(c, "before")
	if err != nil || (before != nil && *before < 0) {
		badRequest(c, "invalid 'before' parameter")
		return
	}
	if before != nil {
		f.Before = *before
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		badRequest(c, "invalid 'limit' parameter")
		return
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		badRequest(c, "invalid 'offset' parameter")
		return
	}
	live, err := optionalBoolQuery(c, "live")
	if err != nil {
		badRequest(c, "invalid 'live' parameter")
		return
	}
	f.LiveOnly = live != nil && *live
	f.Query = c.Query("query")

	page, err := h.query.ListMessages(c.Request.Context(), middleware.GetIdentity(c), f)
	if err != nil {
		respondError(c, h.logger, err, "list messages")
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	msg, err := h.query.GetMessage(c.Request.Context(), middleware.GetIdentity(c), messageID)
	if err != nil {
		respondError(c, h.logger, err, "get message")
		return
	}

	c.JSON(http.StatusOK, msg)
}

type editMessageRequest struct {
	Content string `json:"content" binding:"max=10000"`
}

// Edit handles PATCH /v1/messages/:id
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), middleware.GetIdentity(c), messageID, req.Content)
	if err != nil {
		respondError(c, h.logger, err, "edit message")
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if _, err := h.messages.Delete(c.Request.Context(), middleware.GetIdentity(c), messageID); err != nil {
		respondError(c, h.logger, err, "delete message")
		return
	}

	c.Status(http.StatusNoContent)
}
