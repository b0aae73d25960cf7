package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
)

func TestRespondErrorMapsUpstreamStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"upstream 404", &apiclient.APIError{Method: "GET", Path: "/x", Status: 404}, http.StatusNotFound},
		{"upstream 401", fmt.Errorf("wrapped: %w", &apiclient.APIError{Status: 401}), http.StatusUnauthorized},
		{"upstream 500", &apiclient.APIError{Status: 500, Message: "db down"}, http.StatusBadGateway},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body ProblemDetail
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, http.StatusText(tc.status), body.Title)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		})
	}
}
