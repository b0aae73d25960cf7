package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

type recordedCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// fakeBackend answers upstream calls from a route table and records every request.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]func(w http.ResponseWriter, body map[string]any)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *apiclient.Client) {
	t.Helper()
	fb := &fakeBackend{routes: make(map[string]func(http.ResponseWriter, map[string]any))}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}
		fb.mu.Lock()
		fb.calls = append(fb.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
		route := fb.routes[r.Method+" "+r.URL.Path+"#"+r.URL.Query().Get("dealerId")]
		if route == nil {
			route = fb.routes[r.Method+" "+r.URL.Path]
		}
		fb.mu.Unlock()
		if route == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		route(w, body)
	}))
	t.Cleanup(srv.Close)
	return fb, apiclient.New(apiclient.Options{BaseURL: srv.URL, Backoff: time.Millisecond})
}

func (fb *fakeBackend) on(method, path string, fn func(http.ResponseWriter, map[string]any)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes[method+" "+path] = fn
}

func (fb *fakeBackend) json(method, path string, status int, payload string) {
	fb.on(method, path, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	})
}

// forDealer answers path only for requests carrying dealerId=dealerID.
func (fb *fakeBackend) forDealer(method, path string, dealerID int64, payload string) {
	fb.json(method, path+"#"+strconv.FormatInt(dealerID, 10), http.StatusOK, payload)
}

func (fb *fakeBackend) count(method, path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) last(method, path string) (recordedCall, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := len(fb.calls) - 1; i >= 0; i-- {
		if fb.calls[i].Method == method && fb.calls[i].Path == path {
			return fb.calls[i], true
		}
	}
	return recordedCall{}, false
}

type auditSpy struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

var admin = shared.Principal{UserID: 1, Name: "Asha", Role: shared.RoleAdmin, Token: "tok"}

func seededStore(t *testing.T, svc *Service, dealerID int64) *store.Store {
	t.Helper()
	st := store.New()
	q := listviewQuery(TabEntries, dealerID)
	require.NoError(t, svc.LoadDealerPage(context.Background(), st, dealerID, TabEntries, q))
	return st
}

func listviewQuery(tab string, dealerID int64) store.Query {
	return store.Query{Scope: tab, Page: 1, PageSize: 10, Params: map[string]string{"dealerId": strconv.FormatInt(dealerID, 10)}}
}

func setupLedger(t *testing.T) (*fakeBackend, *Service, *auditSpy) {
	t.Helper()
	fb, api := newFakeBackend(t)
	fb.json(http.MethodGet, pathDealerInfo, http.StatusOK, `[{"dealerId":4,"dealerName":"Alpha","currentBal":-5000}]`)
	fb.json(http.MethodGet, pathEntries, http.StatusOK, `{"data":[
		{"entryId":1,"sourceType":"purchase","isChecked":0},
		{"inwardsEntryId":2,"sourceType":"charge","isChecked":0},
		{"entryId":3,"sourceType":"sale","isChecked":1}
	],"total":3}`)
	fb.json(http.MethodGet, pathPayments, http.StatusOK, `{"data":[{"paymentId":9,"amount":100,"isPaid":0}],"total":1}`)
	spy := &auditSpy{}
	return fb, NewService(NewClient(api), spy, nil), spy
}

func TestCheckEntryUsesSourceEndpointAndInvalidates(t *testing.T) {
	fb, svc, spy := setupLedger(t)
	st := seededStore(t, svc, 4)

	require.NoError(t, svc.CheckEntry(context.Background(), st, admin, 4, 1, ""))
	call, ok := fb.last(http.MethodPost, pathCheckPurchaseEntry)
	require.True(t, ok)
	assert.Equal(t, float64(1), call.Body["entryId"])

	state := st.State()
	entry, _ := state.FindEntry(1)
	assert.True(t, entry.Checked())
	assert.True(t, state.Entries.Stale)
	assert.True(t, state.DealerInfo.Stale)

	require.NoError(t, svc.CheckEntry(context.Background(), st, admin, 4, 2, ""))
	assert.Equal(t, 1, fb.count(http.MethodPost, pathCheckChargesEntry))

	err := svc.CheckEntry(context.Background(), st, admin, 4, 3, "")
	assert.ErrorIs(t, err, ErrAlreadyChecked)
	assert.Equal(t, 0, fb.count(http.MethodPost, pathCheckEntry))

	require.Len(t, spy.logs, 2)
	assert.Equal(t, shared.AuditEntryChecked, spy.logs[0].Action)
}

func TestCheckEntryFailureLeavesStateIntact(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.json(http.MethodPost, pathCheckPurchaseEntry, http.StatusInternalServerError, `{"message":"ledger locked"}`)
	st := seededStore(t, svc, 4)
	before := st.State()

	err := svc.CheckEntry(context.Background(), st, admin, 4, 1, "")
	require.Error(t, err)
	assert.Equal(t, "ledger locked", apiclient.Message(err, ""))

	after := st.State()
	entry, _ := after.FindEntry(1)
	assert.False(t, entry.Checked())
	assert.False(t, after.Entries.Stale)
	assert.Equal(t, before.Entries.Version, after.Entries.Version)
}

func TestBulkCheckFiltersAndFallsBackToRequestedCount(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	st := seededStore(t, svc, 4)

	res, err := svc.BulkCheck(context.Background(), st, admin, 4, TabEntries, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Requested: 2, Checked: 2}, res)
	call, ok := fb.last(http.MethodPost, pathCheckMultiple)
	require.True(t, ok)
	assert.Equal(t, []any{float64(1), float64(2)}, call.Body["entryIds"])
	assert.Equal(t, EntryTypeEntries, call.Body["entryType"])

	_, err = svc.BulkCheck(context.Background(), st, admin, 4, TabEntries, []int64{1, 2, 3})
	assert.ErrorIs(t, err, ErrNothingToCheck)
	assert.Equal(t, 1, fb.count(http.MethodPost, pathCheckMultiple))
}

func TestBulkCheckReportsServerCount(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.json(http.MethodPost, pathCheckMultiple, http.StatusOK, `{"checkedCount":1}`)
	st := seededStore(t, svc, 4)

	res, err := svc.BulkCheck(context.Background(), st, admin, 4, TabEntries, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Checked)
}

func TestAddPaymentRefetchesBothLists(t *testing.T) {
	fb, svc, spy := setupLedger(t)
	st := seededStore(t, svc, 4)
	require.NoError(t, svc.LoadDealerPage(context.Background(), st, 4, TabPayments, listviewQuery(TabPayments, 4)))
	entriesBefore := fb.count(http.MethodGet, pathEntries)
	paymentsBefore := fb.count(http.MethodGet, pathPayments)
	infoBefore := fb.count(http.MethodGet, pathDealerInfo)

	form := PaymentForm{Description: "Cheque", Amount: "1200", Date: "2024-06-01", PaymentMethod: 2, MiddleDealerID: 7}
	require.NoError(t, svc.AddPayment(context.Background(), st, admin, 4, form))

	call, ok := fb.last(http.MethodPost, "/"+pathCreatePayment)
	require.True(t, ok)
	assert.Equal(t, "1200.00", call.Body["amount"])
	assert.Equal(t, "2024-06-01", call.Body["payment_date"])
	assert.Equal(t, float64(7), call.Body["middleDealerId"])

	assert.Equal(t, entriesBefore+1, fb.count(http.MethodGet, pathEntries))
	assert.Equal(t, paymentsBefore+1, fb.count(http.MethodGet, pathPayments))
	assert.Equal(t, infoBefore+1, fb.count(http.MethodGet, pathDealerInfo))
	state := st.State()
	assert.False(t, state.Entries.Stale)
	assert.False(t, state.Payments.Stale)
	assert.Equal(t, shared.AuditPaymentCreated, spy.logs[len(spy.logs)-1].Action)
}

func TestArchivePaymentSendsFixedReason(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.json(http.MethodPost, pathDeletePayment, http.StatusOK, `{"message":"Payment archived"}`)
	st := seededStore(t, svc, 4)

	msg, err := svc.ArchivePayment(context.Background(), st, admin, 4, 9)
	require.NoError(t, err)
	assert.Equal(t, "Payment archived", msg)
	call, _ := fb.last(http.MethodPost, pathDeletePayment)
	assert.Equal(t, ArchiveReason, call.Body["reason"])
	assert.Equal(t, float64(9), call.Body["paymentId"])
}

func TestRecalculateDealerRefetchesInfoOnly(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.json(http.MethodPost, pathRecalculateDealer, http.StatusOK, `{"success":true,"message":"Balance updated"}`)
	st := seededStore(t, svc, 4)
	entries := fb.count(http.MethodGet, pathEntries)
	info := fb.count(http.MethodGet, pathDealerInfo)

	msg, err := svc.RecalculateDealer(context.Background(), st, admin, 4)
	require.NoError(t, err)
	assert.Equal(t, "Balance updated", msg)
	assert.Equal(t, entries, fb.count(http.MethodGet, pathEntries))
	assert.Equal(t, info+1, fb.count(http.MethodGet, pathDealerInfo))

	fb.json(http.MethodPost, pathRecalculateDealer, http.StatusOK, `{"success":false,"message":"dealer locked"}`)
	_, err = svc.RecalculateDealer(context.Background(), st, admin, 4)
	assert.Error(t, err)
}

func TestExportNamesDownload(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.on(http.MethodPost, pathExportEntries, func(w http.ResponseWriter, body map[string]any) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	name, bin, err := svc.Export(context.Background(), ExportRequest{
		DealerID: 4, DealerName: "Alpha", Start: day(2024, time.January, 1), End: day(2024, time.January, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alpha (01-01-2024 - 31-01-2024).pdf", name)
	assert.Equal(t, "application/pdf", bin.ContentType)
	call, _ := fb.last(http.MethodPost, pathExportEntries)
	assert.Equal(t, "2024-01-01", call.Body["startDate"])

	_, _, err = svc.Export(context.Background(), ExportRequest{DealerID: 4, DealerName: "Alpha"})
	require.NoError(t, err)
	call, _ = fb.last(http.MethodPost, pathExportEntries)
	assert.Equal(t, "", call.Body["startDate"])
}

func TestEntriesInRangeWalksPages(t *testing.T) {
	fb, api := newFakeBackend(t)
	page := 0
	fb.on(http.MethodGet, pathEntries, func(w http.ResponseWriter, _ map[string]any) {
		page++
		rows := make([]map[string]any, 0, exportPageSize)
		n := exportPageSize
		if page == 2 {
			n = 5
		}
		for i := 0; i < n; i++ {
			rows = append(rows, map[string]any{"entryId": page*1000 + i, "sourceType": "sale"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": rows, "total": exportPageSize + 5})
	})
	svc := NewService(NewClient(api), nil, nil)
	entries, err := svc.EntriesInRange(context.Background(), 4, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, entries, exportPageSize+5)
	assert.Equal(t, 2, fb.count(http.MethodGet, pathEntries))
}

func TestPaymentMethods(t *testing.T) {
	fb, api := newFakeBackend(t)
	fb.json(http.MethodGet, pathPaymentMethods, http.StatusOK, `{"data":[{"id":1,"label":"Cash"},{"value":2,"name":"Cheque"}]}`)
	svc := NewService(NewClient(api), nil, nil)
	methods, err := svc.PaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Option{{ID: 1, Label: "Cash"}, {ID: 2, Label: "Cheque"}}, methods)
}

func TestPaymentMethodsSurviveCancelledCaller(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		started <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"label":"Cash"}]}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(apiclient.New(apiclient.Options{BaseURL: srv.URL, Backoff: time.Millisecond}))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.PaymentMethods(first)
		firstErr <- err
	}()
	<-started

	type result struct {
		methods []models.Option
		err     error
	}
	second := make(chan result, 1)
	go func() {
		methods, err := client.PaymentMethods(context.Background())
		second <- result{methods, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []models.Option{{ID: 1, Label: "Cash"}}, res.methods)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestBulkCheckAfterAnotherDealerWasOpened(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	fb.forDealer(http.MethodGet, pathEntries, 1, `{"data":[
		{"entryId":11,"sourceType":"sale","isChecked":0},
		{"entryId":12,"sourceType":"sale","isChecked":0},
		{"entryId":13,"sourceType":"sale","isChecked":1}
	],"total":3}`)
	fb.forDealer(http.MethodGet, pathEntries, 2, `{"data":[{"entryId":21,"sourceType":"sale","isChecked":0}],"total":1}`)
	ctx := context.Background()
	st := store.New()
	require.NoError(t, svc.LoadDealerPage(ctx, st, 1, TabEntries, listviewQuery(TabEntries, 1)))
	require.NoError(t, svc.LoadDealerPage(ctx, st, 2, TabEntries, listviewQuery(TabEntries, 2)))

	res, err := svc.BulkCheck(ctx, st, admin, 1, TabEntries, []int64{11, 12, 13})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	call, ok := fb.last(http.MethodPost, pathCheckMultiple)
	require.True(t, ok)
	assert.Equal(t, []any{float64(11), float64(12)}, call.Body["entryIds"])

	list, _ := fb.last(http.MethodGet, pathEntries)
	assert.Equal(t, "1", list.Query.Get("dealerId"), "dealer 1 is re-fetched before filtering")
}

func TestEvictedStoreIsRefetchedForLookups(t *testing.T) {
	fb, svc, _ := setupLedger(t)
	ctx := context.Background()

	entry, err := svc.Entry(ctx, store.New(), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SourcePurchase, entry.SourceType)

	_, err = svc.Entry(ctx, store.New(), 4, 77)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	payment, err := svc.Payment(ctx, store.New(), 4, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), payment.ID)

	res, err := svc.BulkCheck(ctx, store.New(), admin, 4, TabEntries, []int64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requested, "entry 3 is known checked once the page is back")
	assert.Equal(t, 1, fb.count(http.MethodPost, pathCheckMultiple))
}
