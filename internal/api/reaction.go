package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echothread/internal/middleware"
	"github.com/lalith-99/echothread/internal/service"
	"go.uber.org/zap"
)

type ReactionHandler struct {
	reactions *service.Reactions
	logger    *zap.Logger
}

func NewReactionHandler(reactions *service.Reactions, logger *zap.Logger) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, logger: logger}
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// List handles GET /v1/messages/:id/reactions
func (h *ReactionHandler) List(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	groups, err := h.reactions.Grouped(c.Request.Context(), middleware.GetIdentity(c), messageID)
	if err != nil {
		respondError(c, h.logger, err, "list reactions")
		return
	}

	c.JSON(http.StatusOK, groups)
}

// Add handles POST /v1/messages/:id/reactions. Re-adding an existing
// reaction answers 200 with the stored row instead of 201.
func (h *ReactionHandler) Add(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	r, created, err := h.reactions.Add(c.Request.Context(), middleware.GetIdentity(c), messageID, req.Emoji)
	if err != nil {
		respondError(c, h.logger, err, "add reaction")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, r)
}

// Toggle handles POST /v1/messages/:id/reactions/toggle
func (h *ReactionHandler) Toggle(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	added, r, err := h.reactions.Toggle(c.Request.Context(), middleware.GetIdentity(c), messageID, req.Emoji)
	if err != nil {
		respondError(c, h.logger, err, "toggle reaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added, "reaction": r})
}

// Remove handles DELETE /v1/reactions/:id
func (h *ReactionHandler) Remove(c *gin.Context) {
	reactionID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	if err := h.reactions.Remove(c.Request.Context(), middleware.GetIdentity(c), reactionID); err != nil {
		respondError(c, h.logger, err, "remove reaction")
		return
	}

	c.Status(http.StatusNoContent)
}
