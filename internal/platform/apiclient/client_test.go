package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(Options{BaseURL: srv.URL + "/", MaxRetries: 2, Backoff: time.Millisecond})
}

func TestGetAttachesTokenAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/master/dealer-info", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"currentBal": -5000}]`))
	}))
	defer srv.Close()

	var out []map[string]any
	ctx := WithToken(context.Background(), "secret")
	err := newTestClient(srv).Get(ctx, "/master/dealer-info", url.Values{"id": {"42"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, -5000, out[0]["currentBal"])
}

func TestPostEncodesJSONWithoutLeadingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entries/create-pm-entry", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 7, body["dealerId"])
		_, _ = w.Write([]byte(`{"id": 99}`))
	}))
	defer srv.Close()

	var out struct {
		ID int64 `json:"id"`
	}
	err := newTestClient(srv).Post(context.Background(), "entries/create-pm-entry", map[string]any{"dealerId": 7}, &out)
	require.NoError(t, err)
	assert.EqualValues(t, 99, out.ID)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	require.NoError(t, newTestClient(srv).Get(context.Background(), "/ping", nil, &out))
	assert.True(t, out["ok"])
	assert.EqualValues(t, 3, calls.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"backend busy"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).Post(context.Background(), "/entries/check-entry", map[string]int{"entryId": 1}, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "backend busy", Message(err, "fallback"))
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestClient(srv).Get(context.Background(), "/master/all-dealers", nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "fallback", Message(err, "fallback"))
}

func TestCancelledContextStopsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := newTestClient(srv).Get(ctx, "/slow", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadReturnsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	bin, err := newTestClient(srv).Download(context.Background(), http.MethodPost, "/export/export-entries", map[string]any{"dealerId": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", bin.ContentType)
	assert.Equal(t, "%PDF-1.4", string(bin.Data))
}

func TestListDecodesArrayAndEnvelope(t *testing.T) {
	var bare List[map[string]int]
	require.NoError(t, json.Unmarshal([]byte(`[{"a":1},{"a":2}]`), &bare))
	assert.Len(t, bare.Items, 2)
	assert.Equal(t, 2, bare.Total)

	var env List[map[string]int]
	require.NoError(t, json.Unmarshal([]byte(`{"data":[{"a":1}],"total":41}`), &env))
	assert.Len(t, env.Items, 1)
	assert.Equal(t, 41, env.Total)

	var counted List[map[string]int]
	require.NoError(t, json.Unmarshal([]byte(`{"rows":[{"a":1}],"totalCount":7}`), &counted))
	assert.Equal(t, 7, counted.Total)

	var ack Ack
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"message":"nope"}`), &ack))
	assert.True(t, ack.Failed())
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var statuses []int
	client := New(Options{
		BaseURL:    srv.URL,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Observer: func(method, path string, status int, _ time.Duration) {
			assert.Equal(t, http.MethodGet, method)
			assert.Equal(t, "/v2/inventory/get-all-stock", path)
			statuses = append(statuses, status)
		},
	})
	require.NoError(t, client.Get(context.Background(), "/v2/inventory/get-all-stock", nil, nil))
	assert.Equal(t, []int{http.StatusBadGateway, http.StatusOK}, statuses)
}
