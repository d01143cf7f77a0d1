package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/auth"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/repository/memory"
	"github.com/lalith-99/echothread/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	mem     *memory.Store
	tenant  uuid.UUID
}

func newTestServer(t *testing.T, health map[string]HealthCheck) *testServer {
	t.Helper()
	mem := memory.New()
	engine := service.New(service.Stores{
		Channels:  mem.Channels(),
		Groups:    mem.Groups(),
		Members:   mem.Memberships(),
		Messages:  mem.Messages(),
		Reactions: mem.Reactions(),
		Mentions:  mem.Mentions(),
		Users:     mem.Users(),
	}, service.Options{}, zap.NewNop())

	return &testServer{
		t: t,
		handler: NewRouter(RouterConfig{
			Engine:    engine,
			JWTSecret: testSecret,
			Logger:    zap.NewNop(),
			Health:    health,
		}),
		mem:    mem,
		tenant: uuid.New(),
	}
}

// user registers a user and returns a bearer token for them.
func (s *testServer) user() (uuid.UUID, string) {
	s.t.Helper()
	id := uuid.New()
	s.mem.AddUser(models.User{ID: id, TenantID: s.tenant})
	token, err := auth.GenerateToken(models.Identity{TenantID: s.tenant, UserID: id}, testSecret, time.Hour)
	require.NoError(s.t, err)
	return id, token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

type errorBody struct {
	Error    string          `json:"error"`
	Code     string          `json:"code"`
	Existing json.RawMessage `json:"existing"`
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/channels", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decode[errorBody](t, rec).Code)

	rec = s.do(http.MethodGet, "/v1/channels", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := auth.GenerateToken(models.Identity{TenantID: s.tenant, UserID: uuid.New()}, "other", time.Hour)
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/v1/channels", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChannelMessageFlow(t *testing.T) {
	s := newTestServer(t, nil)
	_, ownerToken := s.user()
	memberID, memberToken := s.user()

	rec := s.do(http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "General Chat"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ch := decode[models.Channel](t, rec)
	require.Equal(t, "general-chat", ch.Name)

	rec = s.do(http.MethodPost, "/v1/channels/"+ch.ID.String()+"/members", ownerToken, gin.H{"user_id": memberID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/v1/messages", ownerToken, gin.H{"channel_id": ch.ID, "content": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[models.Message](t, rec)
	require.Equal(t, models.ChannelTarget(ch.ID), msg.Target)

	rec = s.do(http.MethodPost, "/v1/messages", memberToken, gin.H{"parent_message_id": msg.ID, "content": "hi back"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/v1/messages/"+itoa(msg.ID)+"/reactions", memberToken, gin.H{"emoji": "👍"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/v1/messages/"+itoa(msg.ID)+"/reactions", memberToken, gin.H{"emoji": "👍"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/messages?channel_id="+ch.ID.String(), memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[models.MessagePage](t, rec)
	require.Len(t, page.Messages, 1)
	require.Equal(t, 1, page.Messages[0].ThreadReplyCount)
	require.Equal(t, []models.ReactionGroup{{Emoji: "👍", Count: 1, UserIDs: []uuid.UUID{memberID}}}, page.Messages[0].Reactions)
	require.False(t, page.HasMore)

	rec = s.do(http.MethodGet, "/v1/messages?parent_message_id="+itoa(msg.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[models.MessagePage](t, rec).Messages, 1)

	rec = s.do(http.MethodGet, "/v1/unread", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unread := decode[[]models.UnreadCount](t, rec)
	require.Len(t, unread, 1)
	require.Equal(t, 1, unread[0].Count)

	rec = s.do(http.MethodPost, "/v1/channels/"+ch.ID.String()+"/read", memberToken, gin.H{"message_id": msg.ID})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, "/v1/messages/"+itoa(msg.ID), memberToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "not_sender", decode[errorBody](t, rec).Code)

	rec = s.do(http.MethodDelete, "/v1/messages/"+itoa(msg.ID), ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/v1/messages/"+itoa(msg.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[models.MessageView](t, rec)
	require.True(t, view.IsDeleted)
	require.Empty(t, view.Content)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, nil)
	_, ownerToken := s.user()
	_, outsiderToken := s.user()

	rec := s.do(http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "leads", "channel_type": "private"})
	require.Equal(t, http.StatusCreated, rec.Code)
	private := decode[models.Channel](t, rec)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing name", http.MethodPost, "/v1/channels", ownerToken, gin.H{}, http.StatusBadRequest, "bad_request"},
		{"bad type", http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "x", "channel_type": "secret"}, http.StatusBadRequest, "bad_request"},
		{"duplicate name", http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "Leads"}, http.StatusConflict, "channel_name_taken"},
		{"private channel", http.MethodGet, "/v1/channels/" + private.ID.String(), outsiderToken, nil, http.StatusForbidden, "membership_required"},
		{"unknown channel", http.MethodGet, "/v1/channels/" + uuid.NewString(), ownerToken, nil, http.StatusNotFound, "channel_not_found"},
		{"malformed id", http.MethodGet, "/v1/channels/nope", ownerToken, nil, http.StatusBadRequest, "bad_request"},
		{"no target", http.MethodPost, "/v1/messages", ownerToken, gin.H{"content": "hi"}, http.StatusBadRequest, "invalid_target"},
		{"two targets", http.MethodPost, "/v1/messages", ownerToken, gin.H{"channel_id": private.ID, "group_id": uuid.New(), "content": "hi"}, http.StatusBadRequest, "invalid_target"},
		{"empty message", http.MethodPost, "/v1/messages", ownerToken, gin.H{"channel_id": private.ID}, http.StatusBadRequest, "empty_message"},
		{"unknown message", http.MethodGet, "/v1/messages/999", ownerToken, nil, http.StatusNotFound, "message_not_found"},
		{"bad limit", http.MethodGet, "/v1/messages?channel_id=" + private.ID.String() + "&limit=-1", ownerToken, nil, http.StatusBadRequest, "bad_request"},
		{"empty search", http.MethodGet, "/v1/search?q=", ownerToken, nil, http.StatusBadRequest, "empty_query"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.token, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decode[errorBody](t, rec).Code)
		})
	}

	rec = s.do(http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "leads"})
	require.Equal(t, http.StatusConflict, rec.Code)
	existing := decode[errorBody](t, rec).Existing
	var ch models.Channel
	require.NoError(t, json.Unmarshal(existing, &ch))
	require.Equal(t, private.ID, ch.ID)
}

func TestGroupsAndDMs(t *testing.T) {
	s := newTestServer(t, nil)
	u1, t1 := s.user()
	u2, t2 := s.user()

	rec := s.do(http.MethodPost, "/v1/groups", t1, gin.H{"is_dm": true, "member_ids": []uuid.UUID{u2}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dm := decode[models.Group](t, rec)
	require.True(t, dm.IsDM)

	rec = s.do(http.MethodPost, "/v1/messages", t2, gin.H{"group_id": dm.ID, "content": "psst"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/v1/groups?is_dm=true", t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.Group](t, rec), 1)

	rec = s.do(http.MethodGet, "/v1/groups/"+dm.ID.String(), t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Kind        models.ConversationKind `json:"kind"`
		UnreadCount int                     `json:"unread_count"`
		Members     []models.Member         `json:"members"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, models.KindDM, detail.Kind)
	require.Equal(t, 1, detail.UnreadCount)
	require.Len(t, detail.Members, 2)

	rec = s.do(http.MethodPost, "/v1/groups/"+dm.ID.String()+"/members", t1, gin.H{"user_id": u1})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "dm_membership_fixed", decode[errorBody](t, rec).Code)
}

func TestMentionsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	_, ownerToken := s.user()
	mentioned, mentionedToken := s.user()

	rec := s.do(http.MethodPost, "/v1/channels", ownerToken, gin.H{"name": "general"})
	require.Equal(t, http.StatusCreated, rec.Code)
	ch := decode[models.Channel](t, rec)

	rec = s.do(http.MethodPost, "/v1/messages", ownerToken, gin.H{
		"channel_id":         ch.ID,
		"content":            "look at this",
		"mentioned_user_ids": []uuid.UUID{mentioned},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	msg := decode[models.Message](t, rec)

	rec = s.do(http.MethodGet, "/v1/mentions?unread=true", mentionedToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.Mention](t, rec), 1)

	rec = s.do(http.MethodPost, "/v1/mentions/"+itoa(msg.ID)+"/read", mentionedToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[models.Mention](t, rec).IsRead)

	rec = s.do(http.MethodGet, "/v1/mentions?unread=true", mentionedToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]models.Mention](t, rec))

	rec = s.do(http.MethodGet, "/v1/search?q=LOOK", mentionedToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.MessageView](t, rec), 1)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	rec := s.do(http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","dependencies":{"postgres":"ok"}}`, rec.Body.String())

	s = newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = s.do(http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"degraded","dependencies":{"redis":"connection refused"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.user()
	s.do(http.MethodGet, "/v1/channels", token, nil)

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
