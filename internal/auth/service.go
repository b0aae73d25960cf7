// Package auth signs operators in against the upstream auth service and keeps the issued
// token on the dashboard session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

const pathLogin = "/auth/login"

// ErrRoleNotAllowed is returned for accounts whose role has no dashboard access.
var ErrRoleNotAllowed = errors.New("auth: role has no dashboard access")

// Service wraps authentication business rules.
type Service struct {
	api *apiclient.Client
}

// NewService constructs a new Service.
func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

// Authenticate forwards credentials upstream and returns the signed-in principal.
func (s *Service) Authenticate(ctx context.Context, email, password string) (shared.Principal, error) {
	var out loginResponse
	err := s.api.Post(ctx, pathLogin, loginRequest{Email: strings.TrimSpace(email), Password: password}, &out)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusNotFound) {
			return shared.Principal{}, shared.ErrInvalidCredentials
		}
		return shared.Principal{}, fmt.Errorf("auth: login: %w", err)
	}
	p, ok := out.principal()
	if !ok {
		if out.Token == "" {
			return shared.Principal{}, shared.ErrInvalidCredentials
		}
		return shared.Principal{}, ErrRoleNotAllowed
	}
	return p, nil
}

// HomePath is where a principal lands after signing in.
func HomePath(p shared.Principal) string {
	switch p.Role {
	case shared.RoleProduction:
		return "/production/plans"
	case shared.RoleDealer:
		return "/warranty"
	default:
		return "/dealers"
	}
}
