package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceTone(t *testing.T) {
	assert.Equal(t, ToneNegative, BalanceTone(decimal.NewFromInt(-5000)))
	assert.Equal(t, TonePositive, BalanceTone(decimal.NewFromInt(12000)))
	assert.Equal(t, TonePositive, BalanceTone(decimal.Zero))
}

func TestFormatMoneyGroupsThousands(t *testing.T) {
	assert.Contains(t, FormatMoney(decimal.NewFromInt(12000)), "12,000")
	assert.Contains(t, FormatMoney(decimal.RequireFromString("-5000.456")), "5,000.46")
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	role, ok = ParseRole("4")
	assert.True(t, ok)
	assert.Equal(t, RoleDealer, role)

	_, ok = ParseRole("janitor")
	assert.False(t, ok)
}

func TestFlashesSurviveRedirect(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := NewSessionManager(client, "plati_session", "secret", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/dealers/1/recalculate", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	StorePrincipal(sess, Principal{UserID: 9, Name: "Asha", Role: RoleAdmin, Token: "tok"})
	sess.AddFlash(Success("Balance recalculated"))
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/dealers/1", nil)
	for _, c := range res.Result().Cookies() {
		next.AddCookie(c)
	}
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)

	p := PrincipalFromSession(loaded)
	assert.Equal(t, int64(9), p.UserID)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "tok", p.Token)

	flashes := DrainFlashes(loaded)
	require.Len(t, flashes, 1)
	assert.Equal(t, "Balance recalculated", flashes[0].Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := NewSessionManager(client, "plati_session", "secret", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	StorePrincipal(sess, Principal{UserID: 9, Role: RoleAdmin, Token: "tok"})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))

	forged := httptest.NewRequest(http.MethodGet, "/dealers", nil)
	forged.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID + ".bogus"})
	loaded, err := sm.Load(ctx, forged)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
	assert.False(t, PrincipalFromSession(loaded).Authenticated())

	bare := httptest.NewRequest(http.MethodGet, "/dealers", nil)
	bare.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err = sm.Load(ctx, bare)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestRegenerateDropsPreviousSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := NewSessionManager(client, "plati_session", "secret", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))
	oldID := sess.ID

	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sm.cookieValue(oldID)})
	sess, err = sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Regenerate(sess)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))

	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("plati:session:"+oldID))
	assert.True(t, mr.Exists("plati:session:"+sess.ID))
}

func TestNoPoolAuditLoggerIsDisabled(t *testing.T) {
	logger := NewAuditLogger(nil)
	assert.False(t, logger.Enabled())
	assert.NoError(t, logger.Record(context.Background(), AuditLog{Action: AuditDealerRecalc, Entity: "dealer", EntityID: "1"}))
	assert.Error(t, logger.Record(context.Background(), AuditLog{}))
}

func TestCSRFTokenBoundToSessionID(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	ctx := context.Background()
	sess := &Session{ID: "s1"}

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, token+"x"), ErrCSRFTokenMismatch)

	sess.ID = "s2"
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, token), ErrCSRFTokenMismatch)
	rotated, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, rotated)
	assert.NoError(t, m.VerifyToken(ctx, sess, rotated))
}
