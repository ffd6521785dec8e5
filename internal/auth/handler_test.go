package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/uranghalus/dutaassets-sub001/internal/auth"
	"github.com/uranghalus/dutaassets-sub001/internal/shared"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(discardLogger(), auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, sess: sess, manager: sessionManager, ctx: ctx, req: req}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

// commitWriter persists the session right before the first byte of the
// response, matching the server middleware ordering.
type commitWriter struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           1,
		OrgID:        3,
		Email:        "user@test.local",
		Name:         "Budi",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginSuccessSetsSession(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t, "correctpass1")})

	body := `{"email":"user@test.local","password":"correctpass1"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		UserID    int64  `json:"user_id"`
		OrgID     int64  `json:"org_id"`
		Name      string `json:"name"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Equal(t, int64(1), payload.UserID)
	require.Equal(t, int64(3), payload.OrgID)
	require.Equal(t, "Budi", payload.Name)
	require.NotEmpty(t, payload.CSRFToken)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "test_session", cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t, "correctpass1")})

	body := `{"email":"user@test.local","password":"wrongpass99"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correctpass1")
	user.IsActive = false
	router, _ := newRouter(t, &stubRepo{user: user})

	body := `{"email":"user@test.local","password":"correctpass1"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidationRejectsShortPassword(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{})

	body := `{"email":"user@test.local","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestMeRequiresLogin(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginThenMe(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{user: activeUser(t, "correctpass1")})

	body := `{"email":"user@test.local","password":"correctpass1"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)
	require.Equal(t, http.StatusOK, loginRes.Code)

	cookies := loginRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	meReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	meReq.AddCookie(cookies[0])
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, meReq)

	require.Equal(t, http.StatusOK, meRes.Code)
	var me struct {
		UserID    int64  `json:"user_id"`
		ActorName string `json:"actor_name"`
		OrgID     int64  `json:"org_id"`
	}
	require.NoError(t, json.Unmarshal(meRes.Body.Bytes(), &me))
	require.Equal(t, int64(1), me.UserID)
	require.Equal(t, "Budi", me.ActorName)
	require.Equal(t, int64(3), me.OrgID)
}
