package warranty

import (
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
	"github.com/facelessdevhack/plati-rail-admin/report"
)

// Handler serves the warranty screens.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Pages
	stores    *store.Registry
	rbac      rbac.Middleware
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Pages, stores *store.Registry, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		pages:     pages,
		stores:    stores,
		rbac:      rbacMW,
		validator: shared.NewValidator(),
		now:       time.Now,
	}
}

// MountRoutes registers warranty routes; mount under /warranty.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleDealer))
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}", h.update)
	r.Post("/{id}/otp/send", h.sendOTP)
	r.Post("/{id}/otp/resend", h.resendOTP)
	r.Post("/{id}/otp/verify", h.verifyOTP)
	r.Get("/{id}/certificate.pdf", h.certificate)
}

type listPageData struct {
	Table    listview.View
	Status   string
	Search   string
	Statuses []models.WarrantyStatus
	Error    string
}

type detailPageData struct {
	Registration   models.WarrantyRegistration
	Form           UpdateForm
	Statuses       []models.WarrantyStatus
	Flow           OTPFlow
	CodeLength     int
	CanResend      bool
	ResendIn       int
	CanCertificate bool
	Errors         map[string]string
}

func (h *Handler) session(r *http.Request) (*store.Store, *shared.Session, shared.Principal) {
	sess := shared.SessionFromContext(r.Context())
	id := ""
	if sess != nil {
		id = sess.ID
	}
	return h.stores.Get(id), sess, shared.PrincipalFromContext(r.Context())
}

func registrationURL(id int64, suffix string) string {
	return "/warranty/" + strconv.FormatInt(id, 10) + suffix
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	st, _, principal := h.session(r)
	values := r.URL.Query()
	paging := listview.ParsePaging(values)
	data := listPageData{Status: values.Get("status"), Search: values.Get("search"), Statuses: models.WarrantyStatuses()}
	q := paging.Query("warranty", ListParams(principal, data.Status, data.Search))
	if _, err := h.service.ListController(st).Ensure(r.Context(), q); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
			return
		}
		h.logger.Error("list warranty registrations", slog.Any("error", err))
		data.Error = apiclient.Message(err, "Could not load warranty registrations.")
	}
	rows, total, ok := listview.Rows(st.State().Warranty, q, data.Error != "")
	if !ok {
		data.Error = listview.ReplacedText
	}
	data.Table = listview.Table[models.WarrantyRegistration]{
		Columns:   registrationColumns(),
		Rows:      rows,
		Total:     total,
		Paging:    paging,
		BaseURL:   r.URL,
		EmptyText: "No warranty registrations found.",
		RowKey:    func(reg models.WarrantyRegistration) string { return strconv.FormatInt(reg.ID, 10) },
		RowHref:   func(reg models.WarrantyRegistration) string { return registrationURL(reg.ID, "") },
	}.Build()
	h.pages.Render(w, r, "pages/warranty_list.html", "Warranty registrations", data)
}

// load resolves the registration in the URL. It writes the response and reports false when
// the registration cannot be shown.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.WarrantyRegistration, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return models.WarrantyRegistration{}, false
	}
	st, _, principal := h.session(r)
	reg, err := h.service.Registration(r.Context(), st, principal, id)
	switch {
	case err == nil:
		return reg, true
	case errors.Is(err, ErrNotFound), errors.Is(err, apiclient.ErrNotFound):
		http.NotFound(w, r)
	default:
		h.fail(w, r, "/warranty", "load registration", err, "Could not load the registration.")
	}
	return models.WarrantyRegistration{}, false
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.load(w, r)
	if !ok {
		return
	}
	h.render(w, r, reg, FormFor(reg), nil, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, reg models.WarrantyRegistration, form UpdateForm, errs map[string]string, status int) {
	_, sess, _ := h.session(r)
	flow := h.service.Flow(sess, reg)
	data := detailPageData{
		Registration:   reg,
		Form:           form,
		Statuses:       models.WarrantyStatuses(),
		Flow:           flow,
		CodeLength:     CodeLength,
		CanResend:      flow.CanResend(h.now()),
		CanCertificate: reg.Status == models.WarrantyActive || reg.Status == models.WarrantyVerified,
		Errors:         errs,
	}
	if flow.State == OTPSent && !data.CanResend {
		data.ResendIn = int((ResendCooldown - h.now().Sub(flow.SentAt)).Seconds())
	}
	title := "Warranty " + reg.RegistrationCode
	h.pages.RenderStatus(w, r, status, "pages/warranty_detail.html", title, data)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := ParseUpdateForm(r.PostForm)
	if errs := shared.FieldErrors(h.validator.Struct(form)); len(errs) > 0 {
		h.render(w, r, reg, form, errs, http.StatusUnprocessableEntity)
		return
	}
	st, sess, principal := h.session(r)
	_, err := h.service.Update(r.Context(), st, sess, principal, reg, form)
	if errors.Is(err, ErrInvalidMobile) {
		h.render(w, r, reg, form, map[string]string{"Mobile": "Enter a valid Indian mobile number."}, http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.logger.Error("update registration", slog.Int64("registration_id", reg.ID), slog.Any("error", err))
		h.render(w, r, reg, form, map[string]string{"general": apiclient.Message(err, "Could not save the registration. Please try again.")}, http.StatusBadGateway)
		return
	}
	view.Redirect(w, r, registrationURL(reg.ID, ""), shared.Success("Registration updated."))
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request) {
	h.otp(w, r, false)
}

func (h *Handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	h.otp(w, r, true)
}

func (h *Handler) otp(w http.ResponseWriter, r *http.Request, resend bool) {
	reg, ok := h.load(w, r)
	if !ok {
		return
	}
	_, sess, _ := h.session(r)
	back := registrationURL(reg.ID, "")
	var err error
	if resend {
		err = h.service.ResendOTP(r.Context(), sess, reg)
	} else {
		err = h.service.SendOTP(r.Context(), sess, reg)
	}
	switch {
	case err == nil:
		view.Redirect(w, r, back, shared.Success("Verification code sent to "+reg.Mobile+"."))
	case errors.Is(err, ErrAlreadyVerified):
		view.Redirect(w, r, back, shared.Warning("This mobile number is already verified."))
	case errors.Is(err, ErrResendTooSoon):
		view.Redirect(w, r, back, shared.Warning("Wait a few seconds before requesting another code."))
	case errors.Is(err, ErrOTPNotSent):
		view.Redirect(w, r, back, shared.Warning("Send a verification code first."))
	case errors.Is(err, ErrInvalidMobile):
		view.Redirect(w, r, back, shared.Failure("The registered mobile number is not valid. Correct it before sending a code."))
	default:
		h.fail(w, r, back, "send otp", err, "Could not send the verification code.")
	}
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.load(w, r)
	if !ok {
		return
	}
	st, sess, principal := h.session(r)
	back := registrationURL(reg.ID, "")
	_, err := h.service.VerifyOTP(r.Context(), st, sess, principal, reg, r.PostFormValue("otp"))
	switch {
	case err == nil:
		view.Redirect(w, r, back, shared.Success("Mobile number verified."))
	case errors.Is(err, ErrCodeLength):
		view.Redirect(w, r, back, shared.Failure("Enter the 6-character code."))
	case errors.Is(err, ErrAlreadyVerified):
		view.Redirect(w, r, back, shared.Warning("This mobile number is already verified."))
	case errors.Is(err, ErrOTPNotSent):
		view.Redirect(w, r, back, shared.Warning("Send a verification code first."))
	case errors.Is(err, apiclient.ErrUnauthorized):
		h.fail(w, r, back, "verify otp", err, "")
	default:
		h.logger.Warn("otp verification failed", slog.Int64("registration_id", reg.ID), slog.Any("error", err))
		view.Redirect(w, r, back, shared.Failure(apiclient.Message(err, "The code is incorrect. Try again or resend a new code.")))
	}
}

func (h *Handler) certificate(w http.ResponseWriter, r *http.Request) {
	reg, ok := h.load(w, r)
	if !ok {
		return
	}
	back := registrationURL(reg.ID, "")
	name, pdf, err := h.service.Certificate(r.Context(), reg)
	switch {
	case errors.Is(err, ErrNoCertificate):
		view.Redirect(w, r, back, shared.Warning("Certificates are only issued for active or verified registrations."))
		return
	case errors.Is(err, report.ErrDisabled):
		view.Redirect(w, r, back, shared.Failure("Certificate printing is not configured."))
		return
	case err != nil:
		h.fail(w, r, back, "render certificate", err, "Could not render the certificate.")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, back, op string, err error, fallback string) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
		return
	}
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	view.Redirect(w, r, back, shared.Failure(apiclient.Message(err, fallback)))
}

func registrationColumns() []listview.Column[models.WarrantyRegistration] {
	return []listview.Column[models.WarrantyRegistration]{
		{Key: "code", Title: "Registration", Value: func(reg models.WarrantyRegistration) any { return reg.RegistrationCode }},
		{Key: "customer", Title: "Customer", Value: func(reg models.WarrantyRegistration) any { return reg.CustomerName }},
		{Key: "mobile", Title: "Mobile", Value: func(reg models.WarrantyRegistration) any { return reg.Mobile }},
		{Key: "dealer", Title: "Dealer", Value: func(reg models.WarrantyRegistration) any { return reg.DealerName }},
		{Key: "otp", Title: "Mobile verified", Align: listview.AlignCenter,
			Value: func(reg models.WarrantyRegistration) any { return reg.OTPStatus },
			Render: func(_ any, reg models.WarrantyRegistration) template.HTML {
				if reg.OTPStatus == models.OTPVerified {
					return `<span class="badge badge--ok">Verified</span>`
				}
				return `<span class="badge badge--muted">Not verified</span>`
			}},
		{Key: "status", Title: "Status", Value: func(reg models.WarrantyRegistration) any { return reg.Status }},
	}
}
