package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	pages          *view.Pages
	sessionManager *shared.SessionManager
	stores         *store.Registry
	audit          shared.AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Pages, sessions *shared.SessionManager, stores *store.Registry, audit shared.AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Handler{
		logger:         logger,
		service:        service,
		pages:          pages,
		sessionManager: sessions,
		stores:         stores,
		audit:          audit,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if p := shared.PrincipalFromContext(r.Context()); p.Authenticated() {
		http.Redirect(w, r, HomePath(p), http.StatusSeeOther)
		return
	}
	data := loginPageData{Next: safeNext(r.URL.Query().Get("next"))}
	h.pages.Render(w, r, "pages/login.html", "Sign in", data)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Form: form, Next: safeNext(r.PostFormValue("next"))}
	data.Errors = shared.FieldErrors(h.validator.Struct(form))

	if len(data.Errors) == 0 {
		principal, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			if sess == nil {
				h.logger.Error("session missing during login")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			h.stores.Drop(sess.ID)
			h.sessionManager.Regenerate(sess)
			sess.Delete(shared.CSRFSessionKey)
			shared.StorePrincipal(sess, principal)
			h.record(r, principal, shared.AuditSignedIn)
			next := data.Next
			if next == "" {
				next = HomePath(principal)
			}
			view.Redirect(w, r, next, shared.Success("Welcome back, "+principal.Name+"."))
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			data.Errors = map[string]string{"general": "Invalid email or password."}
		case errors.Is(err, ErrRoleNotAllowed):
			data.Errors = map[string]string{"general": "Your account has no access to the admin dashboard."}
		default:
			h.logger.Error("login", slog.Any("error", err))
			data.Errors = map[string]string{"general": "Sign in is unavailable right now. Please try again."}
		}
	}
	data.Form.Password = ""
	h.pages.RenderStatus(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", data)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if p := shared.PrincipalFromSession(sess); p.Authenticated() {
			h.record(r, p, shared.AuditSignedOut)
		}
		h.stores.Drop(sess.ID)
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) record(r *http.Request, p shared.Principal, action string) {
	err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  p.UserID,
		Action:   action,
		Entity:   "session",
		EntityID: strconv.FormatInt(p.UserID, 10),
		Meta:     map[string]any{"ip": r.RemoteAddr, "ua": r.UserAgent()},
		At:       time.Now(),
	})
	if err != nil {
		h.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// safeNext keeps only local paths as post-login targets.
func safeNext(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' || (len(u.Path) > 1 && u.Path[1] == '/') {
		return ""
	}
	return u.RequestURI()
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
