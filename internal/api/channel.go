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

// ChannelHandler holds the dependencies needed to handle channel requests.
//
// It talks to the engine's Conversations component only; access checks and
// name normalization happen there, not here.
type ChannelHandler struct {
	conversations *service.Conversations
	logger        *zap.Logger
}

func NewChannelHandler(conversations *service.Conversations, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{conversations: conversations, logger: logger}
}

// createChannelRequest is the expected JSON body for POST /v1/channels.
//
// The client never controls id, tenant_id, created_by or timestamps, so
// the request is its own struct rather than models.Channel.
type createChannelRequest struct {
	Name         string     `json:"name" binding:"required,max=80"`
	Type         string     `json:"channel_type" binding:"omitempty,oneof=public private department"`
	Description  string     `json:"description" binding:"max=1000"`
	IsReadOnly   bool       `json:"is_read_only"`
	DepartmentID *uuid.UUID `json:"department_id"`
	ProjectID    *uuid.UUID `json:"project_id"`
	EventID      *uuid.UUID `json:"event_id"`
}

// Create handles POST /v1/channels
func (h *ChannelHandler) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ch, err := h.conversations.CreateChannel(c.Request.Context(), middleware.GetIdentity(c), service.CreateChannelInput{
		Name:         req.Name,
		Type:         models.ChannelType(req.Type),
		Description:  req.Description,
		IsReadOnly:   req.IsReadOnly,
		DepartmentID: req.DepartmentID,
		ProjectID:    req.ProjectID,
		EventID:      req.EventID,
	})
	if err != nil {
		respondError(c, h.logger, err, "create channel")
		return
	}

	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/channels?type=&department_id=&project_id=&event_id=&archived=
func (h *ChannelHandler) List(c *gin.Context) {
	filter := models.ChannelFilter{Type: models.ChannelType(c.Query("type"))}
	var err error
	if filter.DepartmentID, err = optionalUUIDQuery(c, "department_id"); err != nil {
		badRequest(c, "invalid department_id")
		return
	}
	if filter.ProjectID, err = optionalUUIDQuery(c, "project_id"); err != nil {
		badRequest(c, "invalid project_id")
		return
	}
	if filter.EventID, err = optionalUUIDQuery(c, "event_id"); err != nil {
		badRequest(c, "invalid event_id")
		return
	}
	if filter.Archived, err = optionalBoolQuery(c, "archived"); err != nil {
		badRequest(c, "invalid archived")
		return
	}

	channels, err := h.conversations.ListChannels(c.Request.Context(), middleware.GetIdentity(c), filter)
	if err != nil {
		respondError(c, h.logger, err, "list channels")
		return
	}

	// The stores return make([]..., 0), so an empty list is [] and never null.
	c.JSON(http.StatusOK, channels)
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.conversations.GetChannel(c.Request.Context(), middleware.GetIdentity(c), channelID)
	if err != nil {
		respondError(c, h.logger, err, "get channel")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Update handles PATCH /v1/channels/:id. Absent fields stay as they are;
// channel_type is not accepted.
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var patch models.ChannelPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err.Error())
		return
	}

	ch, err := h.conversations.UpdateChannel(c.Request.Context(), middleware.GetIdentity(c), channelID, patch)
	if err != nil {
		respondError(c, h.logger, err, "update channel")
		return
	}

	c.JSON(http.StatusOK, ch)
}
