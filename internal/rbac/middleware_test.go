package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

func requestWithPrincipal(method string, p *shared.Principal) *http.Request {
	req := httptest.NewRequest(method, "/dealers", nil)
	sess := &shared.Session{ID: "s1"}
	if p != nil {
		shared.StorePrincipal(sess, *p)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireRole(t *testing.T) {
	mw := Middleware{}
	var seen shared.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := mw.RequireRole(shared.RoleAdmin, shared.RoleSales)(next)

	res := httptest.NewRecorder()
	guarded.ServeHTTP(res, requestWithPrincipal(http.MethodGet, &shared.Principal{UserID: 1, Role: shared.RoleAdmin}))
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, int64(1), seen.UserID)

	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, requestWithPrincipal(http.MethodPost, &shared.Principal{UserID: 2, Role: shared.RoleDealer}))
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, requestWithPrincipal(http.MethodGet, nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, LoginPath, res.Header().Get("Location"))

	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, requestWithPrincipal(http.MethodPost, nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(shared.RoleAdmin, shared.RoleDataEntry, shared.RoleAdmin))
	assert.False(t, Allowed(shared.RoleDealer, shared.RoleAdmin))
}
