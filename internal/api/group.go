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

type GroupHandler struct {
	conversations *service.Conversations
	logger        *zap.Logger
}

func NewGroupHandler(conversations *service.Conversations, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{conversations: conversations, logger: logger}
}

// createGroupRequest is the body for POST /v1/groups. The caller is always
// enrolled; member_ids lists everyone else.
type createGroupRequest struct {
	Name      string      `json:"name" binding:"max=80"`
	IsDM      bool        `json:"is_dm"`
	MemberIDs []uuid.UUID `json:"member_ids" binding:"max=500"`
}

// Create handles POST /v1/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	g, err := h.conversations.CreateGroup(c.Request.Context(), middleware.GetIdentity(c), service.CreateGroupInput{
		Name:      req.Name,
		IsDM:      req.IsDM,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		respondError(c, h.logger, err, "create group")
		return
	}

	c.JSON(http.StatusCreated, g)
}

// List handles GET /v1/groups?is_dm=
func (h *GroupHandler) List(c *gin.Context) {
	isDM, err := optionalBoolQuery(c, "is_dm")
	if err != nil {
		badRequest(c, "invalid is_dm")
		return
	}

	groups, err := h.conversations.ListGroups(c.Request.Context(), middleware.GetIdentity(c), models.GroupFilter{IsDM: isDM})
	if err != nil {
		respondError(c, h.logger, err, "list groups")
		return
	}

	c.JSON(http.StatusOK, groups)
}

// GetByID handles GET /v1/groups/:id
func (h *GroupHandler) GetByID(c *gin.Context) {
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.conversations.GetGroup(c.Request.Context(), middleware.GetIdentity(c), groupID)
	if err != nil {
		respondError(c, h.logger, err, "get group")
		return
	}

	c.JSON(http.StatusOK, detail)
}
