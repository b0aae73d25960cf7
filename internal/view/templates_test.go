package view

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestPagesRenderDrainsFlashesAndRunsHooks(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	pages := &Pages{
		Engine: engine,
		CSRF:   shared.NewCSRFManager("secret"),
		Logger: slog.Default(),
		Hooks: []Hook{func(_ context.Context, _ *shared.Session, data *TemplateData) {
			data.Banner = "Recalculating"
		}},
	}
	sess := &shared.Session{ID: "s1"}
	sess.AddFlash(shared.Success("Saved."))
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	pages.RenderStatus(rec, req, http.StatusBadRequest, "pages/error.html", "Not allowed", "You cannot open this page.")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Saved.")
	assert.Contains(t, body, "Recalculating")
	assert.Contains(t, body, "You cannot open this page.")
	assert.Nil(t, sess.PopFlash(), "flashes are consumed by the render")
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestRedirectQueuesFlash(t *testing.T) {
	sess := &shared.Session{ID: "s1"}
	req := httptest.NewRequest(http.MethodPost, "/dealers/1/entries/2/check", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	Redirect(rec, req, "/dealers/1", shared.Success("Entry checked."))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dealers/1", rec.Header().Get("Location"))
	msg := sess.PopFlash()
	require.NotNil(t, msg)
	assert.Equal(t, "Entry checked.", msg.Message)
}

func TestDict(t *testing.T) {
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)
	_, err = dict("a")
	assert.Error(t, err)

	var buf bytes.Buffer
	engine, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, engine.Execute(&buf, "partials/field_error", "Required."))
	assert.Contains(t, buf.String(), "Required.")
}
