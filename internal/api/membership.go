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

// MembershipHandler serves the member, read and mute routes shared by
// /channels/:id and /groups/:id. One instance is mounted per kind.
type MembershipHandler struct {
	access    *service.Access
	readState *service.ReadState
	target    func(uuid.UUID) models.Target
	logger    *zap.Logger
}

func NewChannelMembershipHandler(access *service.Access, readState *service.ReadState, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{access: access, readState: readState, target: models.ChannelTarget, logger: logger}
}

func NewGroupMembershipHandler(access *service.Access, readState *service.ReadState, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{access: access, readState: readState, target: models.GroupTarget, logger: logger}
}

func (h *MembershipHandler) conversation(c *gin.Context) (models.Target, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return models.Target{}, false
	}
	return h.target(id), true
}

// addMemberRequest is the JSON body for POST .../:id/members.
// Role defaults to "member".
type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role" binding:"omitempty,oneof=owner admin member"`
}

// AddMember handles POST .../:id/members
func (h *MembershipHandler) AddMember(c *gin.Context) {
	target, ok := h.conversation(c)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		badRequest(c, "invalid role")
		return
	}

	m, err := h.access.AddMember(c.Request.Context(), middleware.GetIdentity(c), target, req.UserID, role)
	if err != nil {
		respondError(c, h.logger, err, "add member")
		return
	}

	c.JSON(http.StatusCreated, m)
}

// RemoveMember handles DELETE .../:id/members/:user_id
func (h *MembershipHandler) RemoveMember(c *gin.Context) {
	target, ok := h.conversation(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.access.RemoveMember(c.Request.Context(), middleware.GetIdentity(c), target, userID); err != nil {
		respondError(c, h.logger, err, "remove member")
		return
	}

	c.Status(http.StatusNoContent)
}

type markReadRequest struct {
	MessageID int64 `json:"message_id" binding:"required,gt=0"`
}

// MarkRead handles POST .../:id/read
func (h *MembershipHandler) MarkRead(c *gin.Context) {
	target, ok := h.conversation(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if _, err := h.readState.MarkRead(c.Request.Context(), middleware.GetIdentity(c), target, req.MessageID); err != nil {
		respondError(c, h.logger, err, "mark read")
		return
	}

	c.Status(http.StatusNoContent)
}

type setMutedRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

// SetMuted handles PUT .../:id/mute
func (h *MembershipHandler) SetMuted(c *gin.Context) {
	target, ok := h.conversation(c)
	if !ok {
		return
	}

	var req setMutedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	m, err := h.access.SetMuted(c.Request.Context(), middleware.GetIdentity(c), target, *req.Muted)
	if err != nil {
		respondError(c, h.logger, err, "set muted")
		return
	}

	c.JSON(http.StatusOK, m)
}
