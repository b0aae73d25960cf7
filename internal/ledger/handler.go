package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
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
)

// Handler serves the dealer ledger screens.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	recalc    *Recalculator
	pages     *view.Pages
	stores    *store.Registry
	rbac      rbac.Middleware
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, recalc *Recalculator, pages *view.Pages, stores *store.Registry, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		recalc:    recalc,
		pages:     pages,
		stores:    stores,
		rbac:      rbacMW,
		validator: shared.NewValidator(),
		now:       time.Now,
	}
}

// MountRoutes registers ledger routes; mount under /dealers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleDataEntry, shared.RoleSales))
		r.Get("/", h.listDealers)
		r.Get("/{dealerID}", h.showDealer)
		r.Post("/{dealerID}/export", h.exportPDF)
		r.Get("/{dealerID}/entries.csv", h.exportCSV)
		r.Get("/{dealerID}/entries.xlsx", h.exportXLSX)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleDataEntry))
		r.Get("/{dealerID}/payments/new", h.showPaymentForm)
		r.Post("/{dealerID}/payments/new", h.createPayment)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin))
		r.Get("/recalculate-all", h.showRecalculateAll)
		r.Post("/recalculate-all", h.startRecalculateAll)
		r.Post("/{dealerID}/entries/check", h.bulkCheck)
		r.Post("/{dealerID}/entries/{entryID}/check", h.checkEntry)
		r.Get("/{dealerID}/entries/{entryID}/edit", h.showEditForm)
		r.Post("/{dealerID}/entries/{entryID}/edit", h.updateEntry)
		r.Post("/{dealerID}/payments/{paymentID}/check", h.checkPayment)
		r.Get("/{dealerID}/payments/{paymentID}/delete", h.confirmDeletePayment)
		r.Post("/{dealerID}/payments/{paymentID}/delete", h.deletePayment)
		r.Post("/{dealerID}/recalculate", h.recalculateDealer)
	})
}

type dealersPageData struct {
	Table   listview.View
	Search  string
	Overdue bool
	Error   string
}

type dealerPageData struct {
	Dealer   models.Dealer
	Tab      string
	Table    listview.View
	Start    string
	End      string
	CSVHref  string
	XLSXHref string
	CanCheck bool
	CanAdd   bool
	Running  bool
	Loading  bool
	Error    string
}

type paymentFormData struct {
	Dealer  models.Dealer
	Form    PaymentForm
	Methods []models.Option
	Errors  map[string]string
}

type editFormData struct {
	Dealer models.Dealer
	Entry  models.LedgerEntry
	Form   EditForm
	Errors map[string]string
}

type deletePageData struct {
	Dealer  models.Dealer
	Payment models.PaymentEntry
}

type recalcPageData struct {
	Running bool
	Timeout time.Duration
}

func (h *Handler) session(r *http.Request) (*store.Store, shared.Principal) {
	sess := shared.SessionFromContext(r.Context())
	id := ""
	if sess != nil {
		id = sess.ID
	}
	return h.stores.Get(id), shared.PrincipalFromContext(r.Context())
}

func dealerPath(dealerID int64, suffix string) string {
	return "/dealers/" + strconv.FormatInt(dealerID, 10) + suffix
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) listDealers(w http.ResponseWriter, r *http.Request) {
	st, principal := h.session(r)
	values := r.URL.Query()
	paging := listview.ParsePaging(values)
	data := dealersPageData{Search: values.Get("search"), Overdue: values.Get("overdue") == "1"}

	params := map[string]string{"search": data.Search}
	if data.Overdue {
		params["overdue"] = "1"
	}
	if principal.Role == shared.RoleSales {
		params["salesId"] = strconv.FormatInt(principal.UserID, 10)
	}
	q := paging.Query("dealers", params)
	if _, err := h.service.DealersController(st).Ensure(r.Context(), q); err != nil {
		h.logger.Error("list dealers", slog.Any("error", err))
		data.Error = apiclient.Message(err, "Could not load dealers.")
	}

	rows, total, ok := listview.Rows(st.State().Dealers, q, data.Error != "")
	if !ok {
		data.Error = listview.ReplacedText
	}
	data.Table = listview.Table[models.Dealer]{
		Columns:   dealerColumns(),
		Rows:      rows,
		Total:     total,
		Paging:    paging,
		BaseURL:   r.URL,
		EmptyText: "No dealers match these filters.",
		RowKey:    func(d models.Dealer) string { return strconv.FormatInt(d.ID, 10) },
		RowHref:   func(d models.Dealer) string { return dealerPath(d.ID, "") },
	}.Build()
	h.pages.Render(w, r, "pages/dealers.html", "Dealers", data)
}

func (h *Handler) showDealer(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	st, principal := h.session(r)
	values := r.URL.Query()
	tab := values.Get("tab")
	if tab != TabPayments {
		tab = TabEntries
	}
	paging := listview.ParsePaging(values)
	start, end := values.Get("start"), values.Get("end")
	sort := listview.ParseSort(values, listview.Sort{}, "date", "amount")

	params := map[string]string{"dealerId": strconv.FormatInt(dealerID, 10)}
	if tab == TabEntries {
		params["startDate"] = formatUpstreamDate(ParseRangeDate(start))
		params["endDate"] = formatUpstreamDate(ParseRangeDate(end))
		for k, v := range sort.Params() {
			params[k] = v
		}
	}
	q := paging.Query(tab, params)

	data := dealerPageData{
		Tab:      tab,
		Start:    start,
		End:      end,
		CanCheck: principal.IsAdmin(),
		CanAdd:   rbac.Allowed(principal.Role, shared.RoleAdmin, shared.RoleDataEntry),
	}
	if err := h.service.LoadDealerPage(ctx, st, dealerID, tab, q); err != nil {
		h.logger.Error("load dealer page", slog.Int64("dealer_id", dealerID), slog.Any("error", err))
		if errors.Is(err, ErrDealerNotFound) || errors.Is(err, apiclient.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		data.Error = apiclient.Message(err, "Could not load the dealer ledger. The last loaded data is shown.")
	}
	if running, err := h.recalc.Running(ctx); err == nil {
		data.Running = running
	}

	state := st.State()
	data.Dealer = state.DealerInfo.Dealer
	if !state.DealerInfo.Holds(DealerInfoQuery(dealerID)) && data.Error == "" {
		data.Dealer = models.Dealer{ID: dealerID}
		data.Error = listview.ReplacedText
	}
	exportQuery := url.Values{"start": {start}, "end": {end}}.Encode()
	data.CSVHref = dealerPath(dealerID, "/entries.csv?"+exportQuery)
	data.XLSXHref = dealerPath(dealerID, "/entries.xlsx?"+exportQuery)

	failed := data.Error != ""
	if tab == TabPayments {
		rows, total, ok := listview.Rows(state.Payments, q, failed)
		if !ok {
			data.Error = listview.ReplacedText
		}
		data.Loading = state.Payments.Loading
		data.Table = listview.Table[models.PaymentEntry]{
			Columns:    paymentColumns(),
			Rows:       rows,
			Total:      total,
			Paging:     paging,
			BaseURL:    r.URL,
			EmptyText:  "No payments recorded for this dealer.",
			RowKey:     paymentKey,
			Selectable: selectableIf(data.CanCheck, func(p models.PaymentEntry) bool { return !p.Checked() }),
			Actions:    actionsIf(data.CanCheck, func(p models.PaymentEntry) []listview.Action { return paymentActions(dealerID, p) }),
		}.Build()
	} else {
		rows, total, ok := listview.Rows(state.Entries, q, failed)
		if !ok {
			data.Error = listview.ReplacedText
		}
		data.Loading = state.Entries.Loading
		data.Table = listview.Table[models.LedgerEntry]{
			Columns:    entryColumns(),
			Rows:       rows,
			Total:      total,
			Paging:     paging,
			Sort:       sort,
			BaseURL:    r.URL,
			EmptyText:  "No entries in this range.",
			RowKey:     entryKey,
			Selectable: selectableIf(data.CanCheck, func(e models.LedgerEntry) bool { return !e.Checked() }),
			Actions:    actionsIf(data.CanCheck, func(e models.LedgerEntry) []listview.Action { return entryActions(dealerID, e) }),
		}.Build()
	}
	h.pages.Render(w, r, "pages/dealer.html", data.Dealer.Name, data)
}

func selectableIf[R any](enabled bool, fn func(R) bool) func(R) bool {
	if !enabled {
		return nil
	}
	return fn
}

func actionsIf[R any](enabled bool, fn func(R) []listview.Action) func(R) []listview.Action {
	if !enabled {
		return nil
	}
	return fn
}

func entryActions(dealerID int64, e models.LedgerEntry) []listview.Action {
	id := strconv.FormatInt(e.ID, 10)
	var out []listview.Action
	if !e.Checked() {
		out = append(out, listview.Action{
			Label:  "Check",
			Href:   dealerPath(dealerID, "/entries/"+id+"/check"),
			Method: http.MethodPost,
			Fields: map[string]string{"source_type": string(e.SourceType)},
		})
	}
	return append(out, listview.Action{Label: "Edit", Href: dealerPath(dealerID, "/entries/"+id+"/edit"), Method: http.MethodGet})
}

func paymentActions(dealerID int64, p models.PaymentEntry) []listview.Action {
	id := strconv.FormatInt(p.ID, 10)
	var out []listview.Action
	if !p.Checked() {
		out = append(out, listview.Action{Label: "Check", Href: dealerPath(dealerID, "/payments/"+id+"/check"), Method: http.MethodPost})
	}
	return append(out, listview.Action{Label: "Delete", Href: dealerPath(dealerID, "/payments/"+id+"/delete"), Method: http.MethodGet, Danger: true})
}

// backToDealer returns to the tab the form was posted from.
func backToDealer(r *http.Request, dealerID int64, tab string) string {
	if ret := r.PostFormValue("return_to"); ret != "" {
		if u, err := url.Parse(ret); err == nil && u.Host == "" && u.Scheme == "" && len(u.Path) > 0 && u.Path[0] == '/' {
			return u.RequestURI()
		}
	}
	if tab == TabPayments {
		return dealerPath(dealerID, "?tab=payments")
	}
	return dealerPath(dealerID, "")
}

func (h *Handler) checkEntry(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	entryID, ok2 := urlID(r, "entryID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	st, principal := h.session(r)
	back := backToDealer(r, dealerID, TabEntries)
	source := models.SourceType(r.PostFormValue("source_type"))
	if err := h.service.CheckEntry(r.Context(), st, principal, dealerID, entryID, source); err != nil {
		h.fail(w, r, back, "check entry", err, "Could not check the entry.")
		return
	}
	view.Redirect(w, r, back, shared.Success("Entry checked."))
}

func (h *Handler) checkPayment(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	paymentID, ok2 := urlID(r, "paymentID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	st, principal := h.session(r)
	back := backToDealer(r, dealerID, TabPayments)
	if err := h.service.CheckPayment(r.Context(), st, principal, dealerID, paymentID); err != nil {
		h.fail(w, r, back, "check payment", err, "Could not check the payment.")
		return
	}
	view.Redirect(w, r, back, shared.Success("Payment checked."))
}

func (h *Handler) bulkCheck(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	tab := r.PostFormValue("tab")
	if tab != TabPayments {
		tab = TabEntries
	}
	st, principal := h.session(r)
	back := backToDealer(r, dealerID, tab)
	res, err := h.service.BulkCheck(r.Context(), st, principal, dealerID, tab, ParseSelection(r.PostForm))
	if errors.Is(err, ErrNothingToCheck) {
		view.Redirect(w, r, back, shared.Warning("Select at least one unchecked entry."))
		return
	}
	if err != nil {
		h.fail(w, r, back, "bulk check", err, "Could not check the selected entries.")
		return
	}
	view.Redirect(w, r, back, shared.Success(fmt.Sprintf("Checked %d %s.", res.Checked, plural(res.Checked, "entry", "entries"))))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (h *Handler) dealer(r *http.Request, st *store.Store, dealerID int64) (models.Dealer, error) {
	_, err := h.service.DealerInfoController(st).Ensure(r.Context(), DealerInfoQuery(dealerID))
	if err != nil {
		return models.Dealer{}, err
	}
	return st.State().DealerInfo.Dealer, nil
}

func (h *Handler) showPaymentForm(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.renderPaymentForm(w, r, dealerID, NewPaymentForm(h.now()), nil, http.StatusOK)
}

func (h *Handler) renderPaymentForm(w http.ResponseWriter, r *http.Request, dealerID int64, form PaymentForm, errs map[string]string, status int) {
	st, _ := h.session(r)
	dealer, err := h.dealer(r, st, dealerID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, "?tab=payments"), "load dealer", err, "Could not load the dealer.")
		return
	}
	methods, err := h.service.PaymentMethods(r.Context())
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, "?tab=payments"), "payment methods", err, "Could not load payment methods.")
		return
	}
	data := paymentFormData{Dealer: dealer, Form: form, Methods: methods, Errors: errs}
	h.pages.RenderStatus(w, r, status, "pages/payment_form.html", "Add payment", data)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := ParsePaymentForm(r.PostForm)
	if errs := shared.FieldErrors(h.validator.Struct(form)); len(errs) > 0 {
		h.renderPaymentForm(w, r, dealerID, form, errs, http.StatusUnprocessableEntity)
		return
	}
	st, principal := h.session(r)
	if err := h.service.AddPayment(r.Context(), st, principal, dealerID, form); err != nil {
		h.logger.Error("create payment", slog.Int64("dealer_id", dealerID), slog.Any("error", err))
		errs := map[string]string{"general": apiclient.Message(err, "Could not record the payment. Please try again.")}
		h.renderPaymentForm(w, r, dealerID, form, errs, http.StatusBadGateway)
		return
	}
	view.Redirect(w, r, dealerPath(dealerID, "?tab=payments"), shared.Success("Payment entry added."))
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	entryID, ok2 := urlID(r, "entryID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	st, _ := h.session(r)
	entry, err := h.service.Entry(r.Context(), st, dealerID, entryID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, ""), "load entry", err, "Could not load the entry.")
		return
	}
	dealer, err := h.dealer(r, st, dealerID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, ""), "load dealer", err, "Could not load the dealer.")
		return
	}
	data := editFormData{Dealer: dealer, Entry: entry, Form: EditFormFor(entry)}
	h.pages.Render(w, r, "pages/entry_form.html", "Edit entry", data)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	entryID, ok2 := urlID(r, "entryID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	st, principal := h.session(r)
	entry, err := h.service.Entry(r.Context(), st, dealerID, entryID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, ""), "load entry", err, "Could not load the entry.")
		return
	}
	form := ParseEditForm(entry.SourceType, r.PostForm)
	render := func(status int, errs map[string]string) {
		dealer := st.State().DealerInfo.Dealer
		h.pages.RenderStatus(w, r, status, "pages/entry_form.html", "Edit entry", editFormData{Dealer: dealer, Entry: entry, Form: form, Errors: errs})
	}
	if errs := form.Validate(h.validator); len(errs) > 0 {
		render(http.StatusUnprocessableEntity, errs)
		return
	}
	if err := h.service.EditEntry(r.Context(), st, principal, dealerID, entry.ID, form); err != nil {
		h.logger.Error("update entry", slog.Int64("entry_id", entryID), slog.Any("error", err))
		render(http.StatusBadGateway, map[string]string{"general": apiclient.Message(err, "Could not update the entry. Please try again.")})
		return
	}
	view.Redirect(w, r, dealerPath(dealerID, ""), shared.Success("Entry updated."))
}

func (h *Handler) confirmDeletePayment(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	paymentID, ok2 := urlID(r, "paymentID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	st, _ := h.session(r)
	payment, err := h.service.Payment(r.Context(), st, dealerID, paymentID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, "?tab=payments"), "load payment", err, "Could not load the payment.")
		return
	}
	dealer, err := h.dealer(r, st, dealerID)
	if err != nil {
		h.fail(w, r, dealerPath(dealerID, "?tab=payments"), "load dealer", err, "Could not load the dealer.")
		return
	}
	h.pages.Render(w, r, "pages/payment_delete.html", "Delete payment", deletePageData{Dealer: dealer, Payment: payment})
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	dealerID, ok1 := urlID(r, "dealerID")
	paymentID, ok2 := urlID(r, "paymentID")
	if !ok1 || !ok2 {
		http.NotFound(w, r)
		return
	}
	st, principal := h.session(r)
	back := dealerPath(dealerID, "?tab=payments")
	msg, err := h.service.ArchivePayment(r.Context(), st, principal, dealerID, paymentID)
	if err != nil {
		h.fail(w, r, back, "archive payment", err, "Could not delete the payment.")
		return
	}
	if msg == "" {
		msg = "Payment entry archived."
	}
	view.Redirect(w, r, back, shared.Success(msg+" The record is archived, not destroyed, and can be restored."))
}

func (h *Handler) recalculateDealer(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	st, principal := h.session(r)
	back := backToDealer(r, dealerID, TabEntries)
	msg, err := h.service.RecalculateDealer(r.Context(), st, principal, dealerID)
	if err != nil {
		h.fail(w, r, back, "recalculate dealer", err, "Could not recalculate the dealer balance.")
		return
	}
	if msg == "" {
		msg = "Dealer balance recalculated."
	}
	view.Redirect(w, r, back, shared.Success(msg))
}

func (h *Handler) showRecalculateAll(w http.ResponseWriter, r *http.Request) {
	running, err := h.recalc.Running(r.Context())
	if err != nil {
		h.logger.Warn("recalculation status", slog.Any("error", err))
	}
	h.pages.Render(w, r, "pages/recalculate_all.html", "Recalculate all dealers", recalcPageData{Running: running, Timeout: h.recalc.Timeout()})
}

func (h *Handler) startRecalculateAll(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("confirm") != "yes" {
		view.Redirect(w, r, "/dealers/recalculate-all", shared.Warning("Confirm the recalculation to start it."))
		return
	}
	_, principal := h.session(r)
	err := h.recalc.Start(r.Context(), principal)
	if errors.Is(err, ErrRecalcRunning) {
		view.Redirect(w, r, "/dealers", shared.Warning("A recalculation of all dealers is already running."))
		return
	}
	if err != nil {
		h.fail(w, r, "/dealers/recalculate-all", "start recalculation", err, "Could not start the recalculation.")
		return
	}
	view.Redirect(w, r, "/dealers", shared.FlashMessage{Kind: shared.FlashInfo, Message: "Recalculation of all dealers started."})
}

func (h *Handler) exportRange(r *http.Request) (time.Time, time.Time) {
	return ParseRangeDate(r.FormValue("start")), ParseRangeDate(r.FormValue("end"))
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	st, _ := h.session(r)
	back := dealerPath(dealerID, "")
	dealer, err := h.dealer(r, st, dealerID)
	if err != nil {
		h.fail(w, r, back, "load dealer", err, "Could not load the dealer.")
		return
	}
	start, end := h.exportRange(r)
	name, bin, err := h.service.Export(r.Context(), ExportRequest{DealerID: dealerID, DealerName: dealer.Name, Start: start, End: end})
	if err != nil {
		h.fail(w, r, back, "export entries", err, "Could not export the report.")
		return
	}
	contentType := bin.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	writeDownload(w, name, contentType, bin.Data)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	h.exportSheet(w, r, ".csv")
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	h.exportSheet(w, r, ".xlsx")
}

// sheetTypes backs mime lookups on hosts without a mime.types database.
var sheetTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (h *Handler) exportSheet(w http.ResponseWriter, r *http.Request, ext string) {
	dealerID, ok := urlID(r, "dealerID")
	if !ok {
		http.NotFound(w, r)
		return
	}
	st, _ := h.session(r)
	back := dealerPath(dealerID, "")
	dealer, err := h.dealer(r, st, dealerID)
	if err != nil {
		h.fail(w, r, back, "load dealer", err, "Could not load the dealer.")
		return
	}
	start, end := h.exportRange(r)
	entries, err := h.service.EntriesInRange(r.Context(), dealerID, start, end)
	if err != nil {
		h.fail(w, r, back, "export entries", err, "Could not export the entries.")
		return
	}
	var buf bytes.Buffer
	if ext == ".csv" {
		err = WriteCSV(&buf, entries)
	} else {
		err = WriteXLSX(&buf, dealer.Name, entries)
	}
	if err != nil {
		h.fail(w, r, back, "write export", err, "Could not export the entries.")
		return
	}
	name := ExportFilename(dealer.Name, start, end)
	name = name[:len(name)-len(".pdf")] + ext
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = sheetTypes[ext]
	}
	writeDownload(w, name, contentType, buf.Bytes())
}

func writeDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fail logs err and redirects to back with an error flash. Session expiry sends the
// operator to the login page instead.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, back, op string, err error, fallback string) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		view.Redirect(w, r, rbac.LoginPath, shared.Failure("Your session has expired. Please sign in again."))
		return
	}
	if errors.Is(err, ErrAlreadyChecked) {
		view.Redirect(w, r, back, shared.Warning("This entry is already checked."))
		return
	}
	if errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrPaymentNotFound) {
		view.Redirect(w, r, back, shared.Failure("That row is not on this dealer's ledger page. Open it from the ledger."))
		return
	}
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	view.Redirect(w, r, back, shared.Failure(apiclient.Message(err, fallback)))
}
