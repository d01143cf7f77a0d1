package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echothread/internal/middleware"
	"github.com/lalith-99/echothread/internal/observ"
	"github.com/lalith-99/echothread/internal/service"
	"go.uber.org/zap"
)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig is everything NewRouter needs.
type RouterConfig struct {
	Engine    *service.Engine
	JWTSecret string
	Logger    *zap.Logger

	// Health maps a dependency name ("postgres", "redis") to its check.
	Health map[string]HealthCheck
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine, logger := cfg.Engine, cfg.Logger

	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Health and metrics are public: load balancers and scrapers carry no JWT.
	srv.GET("/v1/health", healthHandler(cfg.Health))
	srv.GET("/metrics", gin.WrapH(observ.MetricsHandler()))

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	channels := NewChannelHandler(engine.Conversations, logger)
	groups := NewGroupHandler(engine.Conversations, logger)
	channelMembers := NewChannelMembershipHandler(engine.Access, engine.ReadState, logger)
	groupMembers := NewGroupMembershipHandler(engine.Access, engine.ReadState, logger)
	messages := NewMessageHandler(engine.Messages, engine.Query, logger)
	reactions := NewReactionHandler(engine.Reactions, logger)
	users := NewUserHandler(engine.ReadState, engine.Mentions, engine.Query, logger)

	v1.GET("/channels", channels.List)
	v1.POST("/channels", channels.Create)
	v1.GET("/channels/:id", channels.GetByID)
	v1.PATCH("/channels/:id", channels.Update)
	v1.POST("/channels/:id/members", channelMembers.AddMember)
	v1.DELETE("/channels/:id/members/:user_id", channelMembers.RemoveMember)
	v1.POST("/channels/:id/read", channelMembers.MarkRead)
	v1.PUT("/channels/:id/mute", channelMembers.SetMuted)

	v1.GET("/groups", groups.List)
	v1.POST("/groups", groups.Create)
	v1.GET("/groups/:id", groups.GetByID)
	v1.POST("/groups/:id/members", groupMembers.AddMember)
	v1.DELETE("/groups/:id/members/:user_id", groupMembers.RemoveMember)
	v1.POST("/groups/:id/read", groupMembers.MarkRead)
	v1.PUT("/groups/:id/mute", groupMembers.SetMuted)

	v1.GET("/messages", messages.List)
	v1.POST("/messages", messages.Create)
	v1.GET("/messages/:id", messages.Get)
	v1.PATCH("/messages/:id", messages.Edit)
	v1.DELETE("/messages/:id", messages.Delete)

	v1.GET("/messages/:id/reactions", reactions.List)
	v1.POST("/messages/:id/reactions", reactions.Add)
	v1.POST("/messages/:id/reactions/toggle", reactions.Toggle)
	v1.DELETE("/reactions/:id", reactions.Remove)

	v1.GET("/unread", users.Unread)
	v1.GET("/search", users.Search)
	v1.GET("/mentions", users.Mentions)
	v1.POST("/mentions/:message_id/read", users.MarkMentionRead)

	return srv
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				deps[name] = err.Error()
				continue
			}
			deps[name] = "ok"
		}

		body := gin.H{"status": "ok", "dependencies": deps}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}
