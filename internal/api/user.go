package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echothread/internal/middleware"
	"github.com/lalith-99/echothread/internal/service"
	"go.uber.org/zap"
)

// UserHandler serves the caller's cross-conversation views: unread totals,
// the mention feed and search.
type UserHandler struct {
	readState *service.ReadState
	mentions  *service.Mentions
	query     *service.Query
	logger    *zap.Logger
}

func NewUserHandler(readState *service.ReadState, mentions *service.Mentions, query *service.Query, logger *zap.Logger) *UserHandler {
	return &UserHandler{readState: readState, mentions: mentions, query: query, logger: logger}
}

// Unread handles GET /v1/unread
func (h *UserHandler) Unread(c *gin.Context) {
	counts, err := h.readState.UnreadSummary(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err, "get unread totals")
		return
	}

	c.JSON(http.StatusOK, counts)
}

// Mentions handles GET /v1/mentions?unread=true
func (h *UserHandler) Mentions(c *gin.Context) {
	unread, err := optionalBoolQuery(c, "unread")
	if err != nil {
		badRequest(c, "invalid 'unread' parameter")
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, "invalid 'limit' parameter")
		return
	}

	mentions, err := h.mentions.List(c.Request.Context(), middleware.GetIdentity(c), unread != nil && *unread, limit)
	if err != nil {
		respondError(c, h.logger, err, "list mentions")
		return
	}

	c.JSON(http.StatusOK, mentions)
}

// MarkMentionRead handles POST /v1/mentions/:message_id/read
func (h *UserHandler) MarkMentionRead(c *gin.Context) {
	messageID, ok := int64Param(c, "message_id")
	if !ok {
		return
	}

	m, err := h.mentions.MarkRead(c.Request.Context(), middleware.GetIdentity(c), messageID)
	if err != nil {
		respondError(c, h.logger, err, "mark mention read")
		return
	}

	c.JSON(http.StatusOK, m)
}

// Search handles GET /v1/search?q=&limit=
func (h *UserHandler) Search(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, "invalid 'limit' parameter")
		return
	}

	results, err := h.query.Search(c.Request.Context(), middleware.GetIdentity(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, h.logger, err, "search messages")
		return
	}

	c.JSON(http.StatusOK, results)
}
