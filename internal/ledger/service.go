package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/facelessdevhack/plati-rail-admin/internal/listview"
	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// exportPageSize is the page size used when walking every entry of a range for CSV/XLSX.
const (
	exportPageSize = 100
	exportMaxPages = 500
)

// Service orchestrates the ledger workflow against the backend and the session store.
type Service struct {
	client *Client
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(client *Client, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, audit: audit, logger: logger, now: time.Now}
}

// BulkResult reports a bulk check.
type BulkResult struct {
	Requested int
	Checked   int
}

// DealersController keeps the dealers list of st in sync.
func (s *Service) DealersController(st *store.Store) listview.Controller[Page[models.Dealer]] {
	return listview.Controller[Page[models.Dealer]]{
		Store:  st,
		Domain: store.DomainDealers,
		Load:   s.client.ListDealers,
		Loaded: func(q store.Query, p Page[models.Dealer]) store.Action {
			return store.DealersLoaded{Query: q, Items: p.Items, Total: p.Total}
		},
	}
}

// EntriesController keeps the entries tab of st in sync.
func (s *Service) EntriesController(st *store.Store) listview.Controller[Page[models.LedgerEntry]] {
	return listview.Controller[Page[models.LedgerEntry]]{
		Store:  st,
		Domain: store.DomainEntries,
		Load:   s.client.ListEntries,
		Loaded: func(q store.Query, p Page[models.LedgerEntry]) store.Action {
			return store.EntriesLoaded{Query: q, Items: p.Items, Total: p.Total}
		},
	}
}

// PaymentsController keeps the payments tab of st in sync.
func (s *Service) PaymentsController(st *store.Store) listview.Controller[Page[models.PaymentEntry]] {
	return listview.Controller[Page[models.PaymentEntry]]{
		Store:  st,
		Domain: store.DomainPayments,
		Load:   s.client.ListPayments,
		Loaded: func(q store.Query, p Page[models.PaymentEntry]) store.Action {
			return store.PaymentsLoaded{Query: q, Items: p.Items, Total: p.Total}
		},
	}
}

// DealerInfoController keeps the dealer header of st in sync.
func (s *Service) DealerInfoController(st *store.Store) listview.Controller[models.Dealer] {
	return listview.Controller[models.Dealer]{
		Store:  st,
		Domain: store.DomainDealerInfo,
		Load: func(ctx context.Context, q store.Query) (models.Dealer, error) {
			return s.client.DealerInfo(ctx, parseID(q.Params["dealerId"]))
		},
		Loaded: func(q store.Query, d models.Dealer) store.Action {
			return store.DealerInfoLoaded{Query: q, Dealer: d}
		},
	}
}

// DealerInfoQuery is the store query of one dealer's header.
func DealerInfoQuery(dealerID int64) store.Query {
	return store.Query{Scope: "dealer", Params: map[string]string{"dealerId": strconv.FormatInt(dealerID, 10)}}
}

// LoadDealerPage brings the dealer header and the requested tab up to date. Both loads run
// concurrently and each is skipped when the store already holds a fresh copy.
func (s *Service) LoadDealerPage(ctx context.Context, st *store.Store, dealerID int64, tab string, q store.Query) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.DealerInfoController(st).Ensure(gctx, DealerInfoQuery(dealerID))
		return err
	})
	g.Go(func() error {
		var err error
		if tab == TabPayments {
			_, err = s.PaymentsController(st).Ensure(gctx, q)
		} else {
			_, err = s.EntriesController(st).Ensure(gctx, q)
		}
		return err
	})
	return g.Wait()
}

// CheckEntry verifies one ledger entry. The entry is looked up in the loaded page; the
// fallback source type is only used when the page was evicted.
func (s *Service) CheckEntry(ctx context.Context, st *store.Store, actor shared.Principal, dealerID, entryID int64, fallback models.SourceType) error {
	entry, ok := lookupEntry(st.State(), dealerID, entryID)
	if ok && entry.Checked() {
		return ErrAlreadyChecked
	}
	if !ok {
		entry = models.LedgerEntry{ID: entryID, DealerID: dealerID, SourceType: fallback}
	}
	if err := s.client.CheckEntry(ctx, entry); err != nil {
		return err
	}
	if ok {
		st.Dispatch(store.EntryChecked{EntryID: entryID})
	}
	st.Invalidate(store.DomainEntries, store.DomainDealerInfo)
	s.record(ctx, actor, shared.AuditEntryChecked, "ledger_entry", entryID, map[string]any{
		"dealer_id":   dealerID,
		"source_type": string(entry.SourceType),
	})
	return nil
}

// CheckPayment verifies one payment entry.
func (s *Service) CheckPayment(ctx context.Context, st *store.Store, actor shared.Principal, dealerID, paymentID int64) error {
	p, loaded := lookupPayment(st.State(), dealerID, paymentID)
	if loaded && p.Checked() {
		return ErrAlreadyChecked
	}
	if err := s.client.CheckPayment(ctx, paymentID); err != nil {
		return err
	}
	if loaded {
		st.Dispatch(store.PaymentChecked{PaymentID: paymentID})
	}
	st.Invalidate(store.DomainPayments, store.DomainDealerInfo)
	s.record(ctx, actor, shared.AuditPaymentChecked, "payment_entry", paymentID, map[string]any{"dealer_id": dealerID})
	return nil
}

// tabDomain maps a ledger tab to its store slice.
func tabDomain(tab string) store.Domain {
	if tab == TabPayments {
		return store.DomainPayments
	}
	return store.DomainEntries
}

// loadedFor reports whether the tab's rows in state were fetched for dealerID.
func loadedFor(state store.State, tab string, dealerID int64) bool {
	meta := state.Meta(tabDomain(tab))
	return meta.Loaded && parseID(meta.Query.Params["dealerId"]) == dealerID
}

// lookupEntry finds a ledger entry of dealerID among the loaded rows.
func lookupEntry(state store.State, dealerID, id int64) (models.LedgerEntry, bool) {
	if !loadedFor(state, TabEntries, dealerID) {
		return models.LedgerEntry{}, false
	}
	e, ok := state.FindEntry(id)
	if !ok || (e.DealerID != 0 && e.DealerID != dealerID) {
		return models.LedgerEntry{}, false
	}
	return e, true
}

// lookupPayment finds a payment of dealerID among the loaded rows.
func lookupPayment(state store.State, dealerID, id int64) (models.PaymentEntry, bool) {
	if !loadedFor(state, TabPayments, dealerID) {
		return models.PaymentEntry{}, false
	}
	p, ok := state.FindPayment(id)
	if !ok || (p.DealerID != 0 && p.DealerID != dealerID) {
		return models.PaymentEntry{}, false
	}
	return p, true
}

// lookupChecked reports whether id is a loaded row of dealerID and whether it is checked.
func lookupChecked(state store.State, tab string, dealerID, id int64) (found, checked bool) {
	if tab == TabPayments {
		p, ok := lookupPayment(state, dealerID, id)
		return ok, p.Checked()
	}
	e, ok := lookupEntry(state, dealerID, id)
	return ok, e.Checked()
}

// Checkable filters a bulk selection for dealerID, keeping order. Duplicates and rows known
// to be checked are dropped. Ids the store cannot place are kept; the backend is
// authoritative for them.
func Checkable(state store.State, tab string, dealerID int64, ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		if found, checked := lookupChecked(state, tab, dealerID, id); found && checked {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ensureRows makes sure the tab holds dealerID's rows and every id in ids, re-fetching when the
// session store was evicted or last showed another dealer. The dealer's current page is
// re-fetched when known, otherwise its first page.
func (s *Service) ensureRows(ctx context.Context, st *store.Store, dealerID int64, tab string, ids ...int64) error {
	state := st.State()
	missing := !loadedFor(state, tab, dealerID)
	for _, id := range ids {
		if missing {
			break
		}
		found, _ := lookupChecked(state, tab, dealerID, id)
		missing = !found
	}
	if !missing {
		return nil
	}
	q := store.Query{
		Scope:    tab,
		Page:     1,
		PageSize: shared.DefaultPageSize,
		Params:   map[string]string{"dealerId": strconv.FormatInt(dealerID, 10)},
	}
	if loadedFor(state, tab, dealerID) {
		q = state.Meta(tabDomain(tab)).Query
	}
	st.Invalidate(tabDomain(tab))
	var err error
	if tab == TabPayments {
		_, err = s.PaymentsController(st).Ensure(ctx, q)
	} else {
		_, err = s.EntriesController(st).Ensure(ctx, q)
	}
	return err
}

// Entry returns entry entryID of dealerID, re-fetching the dealer's rows when the store
// does not hold it.
func (s *Service) Entry(ctx context.Context, st *store.Store, dealerID, entryID int64) (models.LedgerEntry, error) {
	if err := s.ensureRows(ctx, st, dealerID, TabEntries, entryID); err != nil {
		return models.LedgerEntry{}, err
	}
	e, ok := lookupEntry(st.State(), dealerID, entryID)
	if !ok {
		return models.LedgerEntry{}, ErrEntryNotFound
	}
	return e, nil
}

// Payment returns payment paymentID of dealerID, re-fetching the dealer's rows when the
// store does not hold it.
func (s *Service) Payment(ctx context.Context, st *store.Store, dealerID, paymentID int64) (models.PaymentEntry, error) {
	if err := s.ensureRows(ctx, st, dealerID, TabPayments, paymentID); err != nil {
		return models.PaymentEntry{}, err
	}
	p, ok := lookupPayment(st.State(), dealerID, paymentID)
	if !ok {
		return models.PaymentEntry{}, ErrPaymentNotFound
	}
	return p, nil
}

// BulkCheck verifies every unchecked entry of the selection in one call. Rows known to be
// checked never reach the backend; an empty remainder sends nothing.
func (s *Service) BulkCheck(ctx context.Context, st *store.Store, actor shared.Principal, dealerID int64, tab string, ids []int64) (BulkResult, error) {
	if err := s.ensureRows(ctx, st, dealerID, tab, ids...); err != nil {
		s.logger.Warn("reload before bulk check", slog.Int64("dealer_id", dealerID), slog.Any("error", err))
	}
	pending := Checkable(st.State(), tab, dealerID, ids)
	if len(pending) == 0 {
		return BulkResult{}, ErrNothingToCheck
	}
	entryType := EntryTypeEntries
	if tab == TabPayments {
		entryType = EntryTypePayments
	}
	count, err := s.client.CheckMultiple(ctx, pending, entryType)
	if err != nil {
		return BulkResult{}, err
	}
	res := BulkResult{Requested: len(pending), Checked: len(pending)}
	if count != nil {
		res.Checked = *count
	}
	for _, id := range pending {
		if found, _ := lookupChecked(st.State(), tab, dealerID, id); !found {
			continue
		}
		if tab == TabPayments {
			st.Dispatch(store.PaymentChecked{PaymentID: id})
		} else {
			st.Dispatch(store.EntryChecked{EntryID: id})
		}
	}
	st.Invalidate(tabDomain(tab), store.DomainDealerInfo)
	s.record(ctx, actor, shared.AuditEntriesChecked, "dealer", dealerID, map[string]any{
		"entry_type": entryType,
		"requested":  res.Requested,
		"checked":    res.Checked,
	})
	return res, nil
}

// PaymentMethods returns the payment method options.
func (s *Service) PaymentMethods(ctx context.Context) ([]models.Option, error) {
	return s.client.PaymentMethods(ctx)
}

// AddPayment records a payment and then re-fetches both lists and the dealer header.
func (s *Service) AddPayment(ctx context.Context, st *store.Store, actor shared.Principal, dealerID int64, form PaymentForm) error {
	in := form.Input(dealerID)
	if err := s.client.CreatePayment(ctx, in); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditPaymentCreated, "dealer", dealerID, map[string]any{
		"amount":         in.Amount,
		"payment_method": in.PaymentMethod,
		"payment_date":   in.PaymentDate,
	})
	s.refresh(ctx, st, store.DomainEntries, store.DomainPayments, store.DomainDealerInfo)
	return nil
}

// EditEntry updates one ledger entry and re-fetches the affected slices.
func (s *Service) EditEntry(ctx context.Context, st *store.Store, actor shared.Principal, dealerID, entryID int64, form EditForm) error {
	if err := s.client.UpdateEntry(ctx, form.Update(entryID)); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditEntryEdited, "ledger_entry", entryID, map[string]any{
		"dealer_id":   dealerID,
		"source_type": string(form.SourceType),
	})
	s.refresh(ctx, st, store.DomainEntries, store.DomainDealerInfo)
	return nil
}

// ArchivePayment soft-deletes a payment with the fixed audit reason.
func (s *Service) ArchivePayment(ctx context.Context, st *store.Store, actor shared.Principal, dealerID, paymentID int64) (string, error) {
	msg, err := s.client.ArchivePayment(ctx, paymentID, ArchiveReason)
	if err != nil {
		return "", err
	}
	s.record(ctx, actor, shared.AuditPaymentArchived, "payment_entry", paymentID, map[string]any{
		"dealer_id": dealerID,
		"reason":    ArchiveReason,
	})
	s.refresh(ctx, st, store.DomainPayments, store.DomainDealerInfo)
	return msg, nil
}

// RecalculateDealer recomputes one dealer's balance and re-fetches the dealer header only.
func (s *Service) RecalculateDealer(ctx context.Context, st *store.Store, actor shared.Principal, dealerID int64) (string, error) {
	msg, err := s.client.RecalculateDealer(ctx, dealerID)
	if err != nil {
		return "", err
	}
	s.record(ctx, actor, shared.AuditDealerRecalc, "dealer", dealerID, nil)
	s.refresh(ctx, st, store.DomainDealerInfo)
	return msg, nil
}

// Export downloads the PDF report and names it.
func (s *Service) Export(ctx context.Context, req ExportRequest) (string, apiclient.Binary, error) {
	bin, err := s.client.ExportEntries(ctx, req)
	if err != nil {
		return "", apiclient.Binary{}, err
	}
	return ExportFilename(req.DealerName, req.Start, req.End), bin, nil
}

// EntriesInRange walks every page of a dealer's entries between start and end. Zero bounds
// mean all data.
func (s *Service) EntriesInRange(ctx context.Context, dealerID int64, start, end time.Time) ([]models.LedgerEntry, error) {
	params := map[string]string{
		"dealerId":  strconv.FormatInt(dealerID, 10),
		"startDate": formatUpstreamDate(start),
		"endDate":   formatUpstreamDate(end),
	}
	var out []models.LedgerEntry
	for page := 1; page <= exportMaxPages; page++ {
		res, err := s.client.ListEntries(ctx, store.Query{Scope: "export", Page: page, PageSize: exportPageSize, Params: params})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) < exportPageSize || len(out) >= res.Total {
			break
		}
	}
	return out, nil
}

// refresh invalidates the given domains and re-fetches those the session has loaded,
// concurrently. A failed re-fetch is logged; the mutation that triggered it already
// succeeded and the stale flag makes the next page view retry.
func (s *Service) refresh(ctx context.Context, st *store.Store, domains ...store.Domain) {
	st.Invalidate(domains...)
	state := st.State()
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range domains {
		meta := state.Meta(d)
		if !meta.Loaded {
			continue
		}
		q := meta.Query
		switch d {
		case store.DomainEntries:
			g.Go(func() error { _, err := s.EntriesController(st).Ensure(gctx, q); return err })
		case store.DomainPayments:
			g.Go(func() error { _, err := s.PaymentsController(st).Ensure(gctx, q); return err })
		case store.DomainDealerInfo:
			g.Go(func() error { _, err := s.DealerInfoController(st).Ensure(gctx, q); return err })
		case store.DomainDealers:
			g.Go(func() error { _, err := s.DealersController(st).Ensure(gctx, q); return err })
		}
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("refresh after mutation", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, entity string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
