package production

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
)

const (
	plansPath   = "/production/plans"
	plannerPath = "/production/plans/new"
)

// Handler serves the production planning screens.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Pages
	stores    *store.Registry
	rbac      rbac.Middleware
	validator *validator.Validate
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
	}
}

// MountRoutes registers production routes; mount under /production.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleProduction))
	r.Get("/plans", h.listPlans)
	r.Post("/plans", h.submit)
	r.Get("/plans/new", h.showPlanner)
	r.Post("/plans/selection", h.addPlan)
	r.Post("/plans/selection/{key}", h.updatePlan)
	r.Post("/plans/selection/{key}/remove", h.removePlan)
	r.Post("/plans/draft/discard", h.discard)
}

type plansPageData struct {
	Table  listview.View
	Status string
	Error  string
}

type plannerPageData struct {
	Stock     listview.View
	Search    string
	Source    *models.StockRow
	Targets   []FinishOption
	Selection Selections
	Retry     bool
	Errors    map[string]string
	Error     string
}

func (h *Handler) session(r *http.Request) (*store.Store, shared.Principal) {
	sess := shared.SessionFromContext(r.Context())
	id := ""
	if sess != nil {
		id = sess.ID
	}
	return h.stores.Get(id), shared.PrincipalFromContext(r.Context())
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	st, _ := h.session(r)
	values := r.URL.Query()
	paging := listview.ParsePaging(values)
	data := plansPageData{Status: values.Get("status")}
	q := paging.Query("plans", map[string]string{"status": data.Status})
	if _, err := h.service.PlansController(st).Ensure(r.Context(), q); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
			return
		}
		h.logger.Error("list production plans", slog.Any("error", err))
		data.Error = apiclient.Message(err, "Could not load production plans.")
	}
	rows, total, ok := listview.Rows(st.State().Plans, q, data.Error != "")
	if !ok {
		data.Error = listview.ReplacedText
	}
	data.Table = listview.Table[models.ProductionPlan]{
		Columns:   planColumns(),
		Rows:      rows,
		Total:     total,
		Paging:    paging,
		BaseURL:   r.URL,
		EmptyText: "No production plans yet.",
		RowKey:    func(p models.ProductionPlan) string { return strconv.FormatInt(p.ID, 10) },
	}.Build()
	h.pages.Render(w, r, "pages/plans.html", "Production plans", data)
}

func (h *Handler) showPlanner(w http.ResponseWriter, r *http.Request) {
	h.renderPlanner(w, r, nil, http.StatusOK)
}

func (h *Handler) renderPlanner(w http.ResponseWriter, r *http.Request, errs map[string]string, status int) {
	_, principal := h.session(r)
	values := r.URL.Query()
	sourceID, _ := strconv.ParseInt(values.Get("source"), 10, 64)
	if id := r.PostFormValue("alloy_id"); id != "" {
		sourceID, _ = strconv.ParseInt(id, 10, 64)
	}
	data := plannerPageData{Search: values.Get("search"), Retry: values.Get("retry") == "1", Errors: errs}
	planner, err := h.service.LoadPlanner(r.Context(), principal, sourceID)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
			return
		}
		h.logger.Error("load planner", slog.Any("error", err))
		data.Error = apiclient.Message(err, "Could not load the stock snapshot.")
	}
	data.Source = planner.Source
	data.Targets = planner.Targets
	data.Selection = planner.Selection
	data.Retry = data.Retry && len(planner.Selection) > 0

	rows := filterStock(planner.Stock, data.Search)
	paging := listview.ParsePaging(values)
	data.Stock = listview.Table[models.StockRow]{
		Columns:   stockColumns(),
		Rows:      pageOf(rows, paging),
		Total:     len(rows),
		Paging:    paging,
		BaseURL:   r.URL,
		EmptyText: "No alloys in stock match the search.",
		RowKey:    func(s models.StockRow) string { return strconv.FormatInt(s.ID, 10) },
		Actions: func(s models.StockRow) []listview.Action {
			return []listview.Action{{Label: "Plan", Href: plannerLink(r.URL, s.ID), Method: http.MethodGet}}
		},
	}.Build()
	h.pages.RenderStatus(w, r, status, "pages/planner.html", "New production plans", data)
}

func plannerLink(base *url.URL, sourceID int64) string {
	q := base.Query()
	q.Set("source", strconv.FormatInt(sourceID, 10))
	q.Del("retry")
	return plannerPath + "?" + q.Encode()
}

func filterStock(stock []models.StockRow, search string) []models.StockRow {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return stock
	}
	out := make([]models.StockRow, 0, len(stock))
	for _, row := range stock {
		if strings.Contains(strings.ToLower(row.ProductName), search) || strings.Contains(strings.ToLower(row.FinishName), search) {
			out = append(out, row)
		}
	}
	return out
}

func pageOf[R any](rows []R, p listview.Paging) []R {
	start := (p.Page - 1) * p.Size
	if start >= len(rows) || start < 0 {
		return nil
	}
	end := start + p.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func (h *Handler) addPlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := ParseSelectionForm(r.PostForm)
	if errs := shared.FieldErrors(h.validator.Struct(form)); len(errs) > 0 {
		h.renderPlanner(w, r, errs, http.StatusUnprocessableEntity)
		return
	}
	_, principal := h.session(r)
	back := plannerPath + "?source=" + strconv.FormatInt(form.AlloyID, 10)
	plan, err := h.service.AddPlan(r.Context(), principal, form)
	switch {
	case errors.Is(err, ErrDuplicatePlan):
		view.Redirect(w, r, back, shared.Warning("That finish is already planned for this alloy."))
	case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrUnknownAlloy):
		view.Redirect(w, r, plannerPath, shared.Failure("That conversion is not available in the current stock."))
	case err != nil:
		h.fail(w, r, back, "add plan", err, "Could not add the plan.")
	default:
		view.Redirect(w, r, back, shared.Success("Added "+plan.Label()+"."))
	}
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := ParseQuantityForm(r.PostForm)
	if errs := shared.FieldErrors(h.validator.Struct(form)); len(errs) > 0 {
		view.Redirect(w, r, plannerPath, shared.Failure("Quantity: "+errs["Quantity"]))
		return
	}
	_, principal := h.session(r)
	err := h.service.UpdatePlan(r.Context(), principal, chi.URLParam(r, "key"), form.Quantity, form.Urgent)
	if errors.Is(err, ErrUnknownPlan) {
		view.Redirect(w, r, plannerPath, shared.Warning("That plan is no longer selected."))
		return
	}
	if err != nil {
		h.fail(w, r, plannerPath, "update plan", err, "Could not update the plan.")
		return
	}
	view.Redirect(w, r, plannerPath, shared.Success("Plan updated."))
}

func (h *Handler) removePlan(w http.ResponseWriter, r *http.Request) {
	_, principal := h.session(r)
	if err := h.service.RemovePlan(r.Context(), principal, chi.URLParam(r, "key")); err != nil {
		h.fail(w, r, plannerPath, "remove plan", err, "Could not remove the plan.")
		return
	}
	view.Redirect(w, r, plannerPath)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	_, principal := h.session(r)
	if err := h.service.Discard(r.Context(), principal); err != nil {
		h.fail(w, r, plannerPath, "discard draft", err, "Could not discard the selection.")
		return
	}
	view.Redirect(w, r, plannerPath, shared.FlashMessage{Kind: shared.FlashInfo, Message: "Selection discarded."})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	st, principal := h.session(r)
	res, err := h.service.Submit(r.Context(), st, principal)
	if errors.Is(err, ErrEmptySelection) {
		view.Redirect(w, r, plannerPath, shared.Warning("Select at least one plan before submitting."))
		return
	}
	if err != nil {
		h.fail(w, r, plannerPath, "submit plans", err, "Could not submit the plans.")
		return
	}
	switch res.Outcome() {
	case AllSucceeded:
		view.Redirect(w, r, plansPath, res.Message())
	case PartiallySucceeded:
		view.Redirect(w, r, plannerPath+"?retry=1", res.Message())
	default:
		view.Redirect(w, r, plannerPath, res.Message())
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, back, op string, err error, fallback string) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
		return
	}
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	view.Redirect(w, r, back, shared.Failure(apiclient.Message(err, fallback)))
}

func planColumns() []listview.Column[models.ProductionPlan] {
	return []listview.Column[models.ProductionPlan]{
		{Key: "id", Title: "#", Value: func(p models.ProductionPlan) any { return p.ID }},
		{Key: "alloy", Title: "Alloy", Value: func(p models.ProductionPlan) any { return p.AlloyName }},
		{Key: "convert", Title: "Target finish", Value: func(p models.ProductionPlan) any { return p.ConvertName }},
		{Key: "quantity", Title: "Quantity", Align: listview.AlignRight, Value: func(p models.ProductionPlan) any { return p.Quantity }},
		{Key: "allocated", Title: "Allocated", Align: listview.AlignRight, Value: func(p models.ProductionPlan) any { return p.Tracking.Allocated }},
		{Key: "pending", Title: "Pending", Align: listview.AlignRight, Value: func(p models.ProductionPlan) any { return p.Tracking.Pending }},
		{Key: "urgent", Title: "Urgent", Align: listview.AlignCenter,
			Value: func(p models.ProductionPlan) any { return bool(p.Urgent) },
			Render: func(v any, _ models.ProductionPlan) template.HTML {
				if urgent, _ := v.(bool); urgent {
					return `<span class="badge badge--warn">Urgent</span>`
				}
				return ""
			}},
		{Key: "status", Title: "Status", Value: func(p models.ProductionPlan) any { return p.Status },
			Render: func(_ any, p models.ProductionPlan) template.HTML { return statusBadge(p.Status) }},
	}
}

func statusBadge(status models.PlanStatus) template.HTML {
	switch status {
	case models.PlanCompleted:
		return `<span class="badge badge--ok">Completed</span>`
	case models.PlanInProgress:
		return `<span class="badge badge--info">In progress</span>`
	default:
		return `<span class="badge badge--muted">Not started</span>`
	}
}

func stockColumns() []listview.Column[models.StockRow] {
	return []listview.Column[models.StockRow]{
		{Key: "product", Title: "Alloy", Value: func(s models.StockRow) any { return s.ProductName }},
		{Key: "finish", Title: "Finish", Value: func(s models.StockRow) any { return s.FinishName }},
		{Key: "stock", Title: "In stock", Align: listview.AlignRight, Value: func(s models.StockRow) any { return s.InHouseStock }},
	}
}
