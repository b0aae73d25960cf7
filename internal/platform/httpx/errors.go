package httpx

import (
	"errors"
	"net/http"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
)

// Sentinel errors for JSON endpoints.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("dependency unavailable")
)

// RespondError maps errors to RFC7807 responses. Upstream failures keep their status class
// so a 4xx from the backend is not reported as our own fault.
func RespondError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, apiclient.ErrNotFound):
		Problem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, apiclient.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUnavailable):
		Problem(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		Problem(w, http.StatusBadGateway, apiclient.Message(err, "the backend request failed"))
	default:
		Problem(w, http.StatusInternalServerError, "")
	}
}
