package production

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

type plannerFixture struct {
	svc    *Service
	pb     *planBackend
	router chi.Router
	sess   *shared.Session
}

func newPlannerFixture(t *testing.T, reject map[int64]string) *plannerFixture {
	t.Helper()
	svc, pb := newService(t, reject)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.Default()
	pages := &view.Pages{Engine: engine, CSRF: shared.NewCSRFManager("secret"), Logger: logger}
	h := NewHandler(logger, svc, pages, store.NewRegistry(8, time.Minute), rbac.Middleware{Logger: logger})

	r := chi.NewRouter()
	r.Route("/production", h.MountRoutes)
	sess := &shared.Session{ID: "sess-1"}
	shared.StorePrincipal(sess, planner)
	return &plannerFixture{svc: svc, pb: pb, router: r, sess: sess}
}

func (f *plannerFixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	ctx := shared.ContextWithSession(req.Context(), f.sess)
	req = req.WithContext(apiclient.WithToken(ctx, planner.Token))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *plannerFixture) created() []PlanInput {
	f.pb.mu.Lock()
	defer f.pb.mu.Unlock()
	return append([]PlanInput(nil), f.pb.created...)
}

func TestSubmitPartialFailureOffersRetry(t *testing.T) {
	f := newPlannerFixture(t, map[int64]string{4: "Insufficient stock"})
	sel := Selections{
		{AlloyID: 1, AlloyName: "Storm", ConvertID: 3, ConvertName: "Chrome", Quantity: 2},
		{AlloyID: 1, AlloyName: "Storm", ConvertID: 4, ConvertName: "Bronze", Quantity: 3},
	}
	require.NoError(t, f.svc.drafts.Save(ctxFor(planner), planner.UserID, sel))

	rec := f.do(http.MethodPost, "/production/plans")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/production/plans/new?retry=1", rec.Header().Get("Location"))
	msg := f.sess.PopFlash()
	require.NotNil(t, msg)
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Contains(t, msg.Message, "Insufficient stock")

	rec = f.do(http.MethodGet, "/production/plans/new?retry=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Retry failed plans")

	rec = f.do(http.MethodPost, "/production/plans")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/production/plans/new", rec.Header().Get("Location"), "nothing succeeded on retry")
	created := f.created()
	require.Len(t, created, 3)
	assert.Equal(t, int64(4), created[2].ConvertID, "only the failed plan is sent again")

	left, err := f.svc.Selection(ctxFor(planner), planner)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "1-4", left[0].Key())
}

func TestRetryPromptNeedsRemainingPlans(t *testing.T) {
	f := newPlannerFixture(t, nil)

	rec := f.do(http.MethodGet, "/production/plans/new?retry=1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Retry failed plans")
}

func TestSubmitAllSucceededRedirectsToPlans(t *testing.T) {
	f := newPlannerFixture(t, nil)
	require.NoError(t, f.svc.drafts.Save(ctxFor(planner), planner.UserID, Selections{{AlloyID: 1, ConvertID: 3, Quantity: 2}}))

	rec := f.do(http.MethodPost, "/production/plans")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, plansPath, rec.Header().Get("Location"))
	msg := f.sess.PopFlash()
	require.NotNil(t, msg)
	assert.Equal(t, shared.FlashSuccess, msg.Kind)
}
