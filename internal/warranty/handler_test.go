package warranty

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

type otpFixture struct {
	svc    *Service
	wb     *warrantyBackend
	router chi.Router
	sess   *shared.Session
	now    time.Time
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	svc, wb, _ := newWarrantyService(t)
	f := &otpFixture{svc: svc, wb: wb, now: time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)}
	svc.now = func() time.Time { return f.now }

	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.Default()
	pages := &view.Pages{Engine: engine, CSRF: shared.NewCSRFManager("secret"), Logger: logger}
	h := NewHandler(logger, svc, pages, store.NewRegistry(8, time.Minute), rbac.Middleware{Logger: logger})
	h.now = svc.now

	r := chi.NewRouter()
	r.Route("/warranty", h.MountRoutes)
	f.router = r
	f.sess = &shared.Session{ID: "sess-1"}
	shared.StorePrincipal(f.sess, adminUser)
	return f
}

// post sends form to path and returns the response with the flash it queued.
func (f *otpFixture) post(t *testing.T, path string, form url.Values) (*httptest.ResponseRecorder, shared.FlashMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(shared.ContextWithSession(req.Context(), f.sess))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	msg := f.sess.PopFlash()
	require.NotNil(t, msg, path)
	return rec, *msg
}

func TestVerifyOTPFlashes(t *testing.T) {
	f := newOTPFixture(t)
	verify := func(code string) shared.FlashMessage {
		rec, msg := f.post(t, "/warranty/5/otp/verify", url.Values{"otp": {code}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/warranty/5", rec.Header().Get("Location"))
		return msg
	}

	msg := verify("123456")
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Equal(t, "Send a verification code first.", msg.Message)

	_, msg = f.post(t, "/warranty/5/otp/send", nil)
	assert.Equal(t, shared.FlashSuccess, msg.Kind)
	assert.Equal(t, "Verification code sent to 9876543210.", msg.Message)

	msg = verify("123")
	assert.Equal(t, shared.FlashError, msg.Kind)
	assert.Equal(t, "Enter the 6-character code.", msg.Message)
	assert.Zero(t, f.wb.count(pathVerifyOTP))

	msg = verify("999999")
	assert.Equal(t, shared.FlashError, msg.Kind)
	assert.Equal(t, "Invalid OTP", msg.Message)

	msg = verify("123456")
	assert.Equal(t, shared.FlashSuccess, msg.Kind)
	assert.Equal(t, "Mobile number verified.", msg.Message)
	assert.Equal(t, string(models.OTPVerified), f.wb.lastPut().Body["otpStatus"])

	msg = verify("123456")
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Equal(t, "This mobile number is already verified.", msg.Message)
}

func TestResendOTPFlashes(t *testing.T) {
	f := newOTPFixture(t)

	_, msg := f.post(t, "/warranty/5/otp/resend", nil)
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Equal(t, "Send a verification code first.", msg.Message)

	_, msg = f.post(t, "/warranty/5/otp/send", nil)
	require.Equal(t, shared.FlashSuccess, msg.Kind)

	rec, msg := f.post(t, "/warranty/5/otp/resend", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Equal(t, "Wait a few seconds before requesting another code.", msg.Message)
	assert.Equal(t, 1, f.wb.count(pathSendOTP))

	f.now = f.now.Add(ResendCooldown)
	_, msg = f.post(t, "/warranty/5/otp/resend", nil)
	assert.Equal(t, shared.FlashSuccess, msg.Kind)
	assert.Equal(t, "Verification code sent to 9876543210.", msg.Message)
	assert.Equal(t, 2, f.wb.count(pathSendOTP))
}

func TestDetailRendersWhileCodePending(t *testing.T) {
	f := newOTPFixture(t)
	_, msg := f.post(t, "/warranty/5/otp/send", nil)
	require.Equal(t, shared.FlashSuccess, msg.Kind)

	req := httptest.NewRequest(http.MethodGet, "/warranty/5", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), f.sess))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "WR-0005")
}
