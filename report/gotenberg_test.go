package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipartDocument(t *testing.T) {
	var gotHTML, gotWidth, gotLandscape string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("files")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		gotHTML = string(data)
		gotWidth = r.FormValue("paperWidth")
		gotLandscape = r.FormValue("landscape")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	pdf, err := c.RenderHTML(context.Background(), []byte("<h1>Certificate</h1>"), Page{Width: 8.27, Height: 5.83, Landscape: true})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, "<h1>Certificate</h1>", gotHTML)
	assert.Equal(t, "8.27", gotWidth)
	assert.Equal(t, "true", gotLandscape)
}

func TestRenderHTMLSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).RenderHTML(context.Background(), []byte("x"), A4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("", 0)
	assert.False(t, c.Enabled())
	_, err := c.RenderHTML(context.Background(), nil, A4)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrDisabled)
}
