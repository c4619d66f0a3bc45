package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabiofalopes/ann-tfc/internal/config"
	"github.com/fabiofalopes/ann-tfc/internal/models"
	"github.com/fabiofalopes/ann-tfc/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pw"
)

type testServer struct {
	t       *testing.T
	db      *sqlx.DB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := repository.NewDB("sqlite", filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.MigrateDB(db, "sqlite", logger))

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenMinutes = 5
	cfg.Auth.RefreshTokenDays = 1
	cfg.Auth.FirstAdminEmail = adminEmail
	cfg.Auth.FirstAdminPassword = adminPassword
	cfg.Import.MaxUploadBytes = 1 << 20

	srv := NewServer(db, cfg, logger)
	require.NoError(t, srv.Bootstrap(context.Background()))
	return &testServer{t: t, db: db, handler: srv.Handler()}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(path, token, csv string, fields map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(s.t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email, password string) string {
	w := s.do(http.MethodPost, "/auth/token", "", models.LoginInput{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var tokens models.TokenResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &tokens))
	return tokens.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createUser(adminToken, email string) int64 {
	w := s.do(http.MethodPost, "/admin/users", adminToken, models.CreateUserInput{Email: email, Password: "pw1234"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.User](s.t, w).ID
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/auth/token", "", models.LoginInput{Email: adminEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "new@example.com", "password": "pw1234", "is_admin": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.False(t, decode[models.User](t, w).IsAdmin, "self-registration never grants admin")

	w = s.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "new@example.com", "password": "pw1234"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "not-an-email", "password": "pw1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := s.login("new@example.com", "pw1234")
	w = s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, "new@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/users", token, nil).Code)
}

func TestLoginForm(t *testing.T) {
	s := newTestServer(t)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		return w
	}

	w := post(url.Values{"username": {adminEmail}, "password": {adminPassword}, "grant_type": {"password"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[models.TokenResponse](t, w)
	require.NotEmpty(t, tokens.AccessToken)

	w = s.do(http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, adminEmail, decode[map[string]any](t, w)["email"])

	assert.Equal(t, http.StatusUnauthorized, post(url.Values{"username": {adminEmail}, "password": {"wrong"}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(url.Values{"username": {adminEmail}}).Code)
}

func TestProjectAssignRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminEmail, adminPassword)
	annID := s.createUser(admin, "ann@example.com")
	ann := s.login("ann@example.com", "pw1234")

	w := s.do(http.MethodPost, "/admin/projects", admin, models.CreateProjectInput{Name: "p"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := decode[models.Project](t, w).ID

	assign := fmt.Sprintf("/projects/%d/assign/%d", projectID, annID)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, assign, ann, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, assign, "", nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, assign, admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/projects/%d", projectID), ann, nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, assign, ann, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, assign, admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, fmt.Sprintf("/projects/%d", projectID), ann, nil).Code)
}

func TestProjectAccess(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminEmail, adminPassword)
	annID := s.createUser(admin, "ann@example.com")
	ann := s.login("ann@example.com", "pw1234")

	w := s.do(http.MethodPost, "/admin/projects", admin, models.CreateProjectInput{Name: "p"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := decode[models.Project](t, w).ID

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, fmt.Sprintf("/projects/%d", projectID), ann, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/projects/999", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/projects/abc", admin, nil).Code)

	assign := fmt.Sprintf("/admin/projects/%d/assign/%d", projectID, annID)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, assign, admin, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, assign, admin, nil).Code)

	w = s.do(http.MethodGet, "/projects/", ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Project](t, w), 1)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, assign, admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, assign, admin, nil).Code)
}

func TestAnnotationAndAgreementFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminEmail, adminPassword)
	a1 := s.createUser(admin, "a1@example.com")
	a2 := s.createUser(admin, "a2@example.com")

	w := s.do(http.MethodPost, "/admin/projects", admin, models.CreateProjectInput{Name: "p"})
	require.Equal(t, http.StatusCreated, w.Code)
	projectID := decode[models.Project](t, w).ID

	room := "user_id,turn_id,turn_text,reply_to_turn\n" +
		"u1,T1,hi,\nu2,T2,hello,T1\nu1,T3,topic,\nu3,T4,reply,T3\n"
	w = s.upload(fmt.Sprintf("/admin/projects/%d/import-chat-room-csv", projectID), admin, room, map[string]string{"name": "Room 1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	imported := decode[models.ImportResult](t, w)
	assert.Equal(t, 4, imported.ImportedCount)
	roomID := imported.ChatRoomID

	iaaPath := fmt.Sprintf("/admin/chat-rooms/%d/iaa", roomID)

	// Nobody assigned yet.
	w = s.do(http.MethodGet, iaaPath, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[map[string]any](t, w)
	assert.Equal(t, "NotEnoughData", report["analysis_status"])
	assert.Equal(t, []any{}, report["pairwise_accuracies"])

	importPath := fmt.Sprintf("/admin/chat-rooms/%d/import-annotations", roomID)
	w = s.upload(importPath, admin, "turn_id,thread_id\nT1,a\nT2,a\nT3,b\nT4,b\n", map[string]string{"user_id": fmt.Sprint(a1)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.upload(importPath, admin, "turn_id,thread_id\nT1,x\nT2,y\nT3,y\nT4,y\n", map[string]string{"user_id": fmt.Sprint(a2)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, iaaPath, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[map[string]any](t, w)
	assert.Equal(t, float64(roomID), report["chat_room_id"])
	assert.Equal(t, "Room 1", report["chat_room_name"])
	assert.Equal(t, float64(4), report["message_count"])
	assert.Equal(t, float64(2), report["annotator_count"])
	assert.Equal(t, "Complete", report["analysis_status"])
	assert.Equal(t, true, report["is_fully_annotated"])

	pairs := report["pairwise_accuracies"].([]any)
	require.Len(t, pairs, 1)
	pair := pairs[0].(map[string]any)
	assert.Equal(t, "a1@example.com", pair["annotator_1_email"])
	assert.Equal(t, "a2@example.com", pair["annotator_2_email"])
	assert.InDelta(t, 75.0, pair["accuracy"].(float64), 1e-9)
	assert.NotEmpty(t, pair["label_mapping"])

	// Annotators see the imported labels through the project routes.
	a1Token := s.login("a1@example.com", "pw1234")
	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/annotations/my", projectID), a1Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Annotation](t, w), 4)

	w = s.do(http.MethodGet, fmt.Sprintf("/admin/chat-rooms/%d/aggregated-annotations", roomID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	agg := decode[map[string]any](t, w)
	assert.Equal(t, float64(4), agg["total_messages"])

	w = s.do(http.MethodGet, fmt.Sprintf("/admin/chat-rooms/%d/export", roomID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("chat_room_%d_export.json", roomID))

	t.Run("room without messages", func(t *testing.T) {
		empty := &models.ChatRoom{Name: "empty", ProjectID: projectID}
		rooms := repository.NewChatRoomRepository(s.db, zap.NewNop())
		require.NoError(t, rooms.CreateChatRoomWithMessages(context.Background(), empty, nil))

		w := s.do(http.MethodGet, fmt.Sprintf("/admin/chat-rooms/%d/iaa", empty.ID), admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no messages")
	})

	t.Run("unknown room", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/admin/chat-rooms/999/iaa", admin, nil).Code)
	})
}

func TestAnnotationRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminEmail, adminPassword)
	annID := s.createUser(admin, "ann@example.com")
	ann := s.login("ann@example.com", "pw1234")

	w := s.do(http.MethodPost, "/admin/projects", admin, models.CreateProjectInput{Name: "p"})
	projectID := decode[models.Project](t, w).ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, fmt.Sprintf("/admin/projects/%d/assign/%d", projectID, annID), admin, nil).Code)

	w = s.upload(fmt.Sprintf("/admin/projects/%d/import-chat-room-csv", projectID), admin, "user_id,turn_id,turn_text\nu,T1,hi\n", map[string]string{"name": "r"})
	require.Equal(t, http.StatusOK, w.Code)
	roomID := decode[models.ImportResult](t, w).ChatRoomID

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/chat-rooms/%d/messages", projectID, roomID), ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]models.ChatMessage](t, w)
	require.Len(t, msgs, 1)

	annPath := fmt.Sprintf("/projects/%d/messages/%d/annotations", projectID, msgs[0].ID)
	w = s.do(http.MethodPost, annPath, ann, models.CreateAnnotationInput{ThreadID: "t1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Annotation](t, w)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, annPath, ann, models.CreateAnnotationInput{ThreadID: "t2"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, annPath, ann, map[string]string{}).Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/projects/%d/chat-rooms/%d/annotations", projectID, roomID), ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Annotation](t, w), 1)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, fmt.Sprintf("%s/%d", annPath, created.ID), ann, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, fmt.Sprintf("%s/%d", annPath, created.ID), ann, nil).Code)
}

func TestImportValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(adminEmail, adminPassword)
	w := s.do(http.MethodPost, "/admin/projects", admin, models.CreateProjectInput{Name: "p"})
	projectID := decode[models.Project](t, w).ID
	path := fmt.Sprintf("/admin/projects/%d/import-chat-room-csv", projectID)

	w = s.upload(path, admin, "user_id,turn_id,turn_text\n", map[string]string{"name": "r"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, path, admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing file")

	w = s.upload(path, admin, "user_id,turn_id,message\nu,T1,hi\n", map[string]string{"name": "r"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing turn_text column")

	w = s.upload("/admin/chat-rooms/1/import-annotations", admin, "turn_id,thread\n", map[string]string{"user_id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := "user_id,turn_id,turn_text\n" + strings.Repeat("u,T,text\n", (1<<20)/8)
	w = s.upload(path, admin, big, map[string]string{"name": "r"})
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)
}
