package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://backend.test")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "csrf")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("SESSION_SECRET", "session")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.RecalcAllTimeout)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL)
	assert.Equal(t, "IN", cfg.PhoneRegion)
	assert.False(t, cfg.IsProduction())
}

type stack struct {
	handler  http.Handler
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
}

func newStack(t *testing.T, final http.Handler) stack {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "plati_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	engine, err := view.NewEngine()
	require.NoError(t, err)
	mws := MiddlewareStack(MiddlewareConfig{
		Logger:         slog.Default(),
		Config:         &Config{AppEnv: "test"},
		SessionManager: sessions,
		CSRFManager:    csrf,
		Pages:          &view.Pages{Engine: engine, CSRF: csrf, Logger: slog.Default()},
	})
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return stack{handler: h, sessions: sessions, csrf: csrf}
}

// signIn stores a principal in a fresh session and returns its cookie and CSRF token.
func (s stack) signIn(t *testing.T, p shared.Principal) (*http.Cookie, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := s.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	shared.StorePrincipal(sess, p)
	token, err := s.csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, s.sessions.Commit(context.Background(), rec, req, sess))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0], token
}

func TestMiddlewareAttachesPrincipalAndToken(t *testing.T) {
	var gotToken string
	var gotUser shared.Principal
	s := newStack(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = apiclient.TokenFromContext(r.Context())
		gotUser = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	cookie, _ := s.signIn(t, shared.Principal{UserID: 4, Name: "Asha", Role: shared.RoleAdmin, Token: "jwt-123"})

	req := httptest.NewRequest(http.MethodGet, "/dealers", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "jwt-123", gotToken)
	assert.Equal(t, int64(4), gotUser.UserID)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMiddlewareRejectsPostWithoutCSRF(t *testing.T) {
	called := false
	s := newStack(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	cookie, token := s.signIn(t, shared.Principal{UserID: 4, Role: shared.RoleAdmin, Token: "jwt"})

	req := httptest.NewRequest(http.MethodPost, "/dealers/1/recalculate", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	form := url.Values{shared.CSRFFormField: {token}}
	req = httptest.NewRequest(http.MethodPost, "/dealers/1/recalculate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.True(t, called)
}

func TestPanicRendersErrorPage(t *testing.T) {
	s := newStack(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/production/plans", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
}

func TestHealthReportsRequiredAndOptionalChecks(t *testing.T) {
	h := healthHandler(slog.Default(), []HealthCheck{
		{Name: "redis", Check: func(context.Context) error { return nil }},
		{Name: "gotenberg", Optional: true, Check: func(context.Context) error { return errors.New("refused") }},
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"ok","gotenberg":"refused"}}`, rec.Body.String())

	h = healthHandler(slog.Default(), []HealthCheck{
		{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
