package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// Upstream endpoints of the ledger.
const (
	pathDealers             = "/master/all-dealers"
	pathDealerInfo          = "/master/dealer-info"
	pathPaymentMethods      = "/master/payment-methods"
	pathEntries             = "/entries/get-all-entries-admin"
	pathPayments            = "/entries/get-pm-entries"
	pathCheckEntry          = "/entries/check-entry"
	pathCheckPurchaseEntry  = "/entries/check-purchase-entry"
	pathCheckChargesEntry   = "/entries/check-charges-entry"
	pathCheckPaymentEntry   = "/entries/check-payment-entry"
	pathCheckMultiple       = "/entries/check-multiple-entries"
	pathCreatePayment       = "entries/create-pm-entry"
	pathUpdateEntry         = "/entries/update-entry"
	pathDeletePayment       = "/entries/delete-payment-entry"
	pathRecalculateDealer   = "/entries/recalculate-dealer-balance"
	pathRecalculateAll      = "/entries/recalculate-all-orders"
	pathExportEntries       = "/export/export-entries"
	upstreamDateLayout      = "2006-01-02"
	paymentMethodsFlightKey = "payment-methods"
)

// CheckEndpoint picks the check endpoint for an entry by its source type.
func CheckEndpoint(source models.SourceType) string {
	switch source {
	case models.SourcePurchase:
		return pathCheckPurchaseEntry
	case models.SourceCharge:
		return pathCheckChargesEntry
	default:
		return pathCheckEntry
	}
}

// Page is one page of upstream rows.
type Page[T any] struct {
	Items []T
	Total int
}

// PaymentInput is the body of create-pm-entry.
type PaymentInput struct {
	DealerID       int64  `json:"dealerId"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	PaymentMethod  int64  `json:"paymentMethod"`
	MiddleDealerID *int64 `json:"middleDealerId"`
	PaymentDate    string `json:"payment_date"`
}

// EntryUpdate is the body of update-entry. Product fields are omitted for payment-type entries.
type EntryUpdate struct {
	EntryID     int64             `json:"entryId"`
	SourceType  models.SourceType `json:"sourceType"`
	Description string            `json:"description,omitempty"`
	Amount      string            `json:"amount,omitempty"`
	ProductID   int64             `json:"productId,omitempty"`
	Quantity    int               `json:"quantity,omitempty"`
	Price       string            `json:"price,omitempty"`
	IsClaim     *models.Flag      `json:"isClaim,omitempty"`
}

// RecalcSummary is the per-dealer outcome of a recalculate-all run.
type RecalcSummary struct {
	TotalDealers int            `json:"totalDealers"`
	Successful   []RecalcDealer `json:"successful"`
	Failed       []RecalcDealer `json:"failed"`
}

// RecalcDealer names one dealer of a recalculation summary.
type RecalcDealer struct {
	DealerID   int64  `json:"dealerId"`
	DealerName string `json:"dealerName"`
	Error      string `json:"error,omitempty"`
}

// ExportRequest selects the entries of a PDF export. Zero dates export all data.
type ExportRequest struct {
	DealerID   int64
	DealerName string
	Start      time.Time
	End        time.Time
}

// Client speaks to the ledger endpoints of the backend.
type Client struct {
	api     *apiclient.Client
	methods singleflight.Group
}

// NewClient constructs a ledger Client.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// ListDealers loads one page of dealers. Query params: search, overdue, salesId.
func (c *Client) ListDealers(ctx context.Context, q store.Query) (Page[models.Dealer], error) {
	values := pageValues(q)
	copyParams(values, q.Params, "search", "overdue", "salesId")
	var out apiclient.List[wireDealer]
	if err := c.api.Get(ctx, pathDealers, values, &out); err != nil {
		return Page[models.Dealer]{}, fmt.Errorf("ledger: list dealers: %w", err)
	}
	return Page[models.Dealer]{Items: normaliseAll[models.Dealer](out.Items), Total: out.Total}, nil
}

// DealerInfo loads the header record of one dealer.
func (c *Client) DealerInfo(ctx context.Context, dealerID int64) (models.Dealer, error) {
	var out apiclient.List[wireDealer]
	values := url.Values{"id": {strconv.FormatInt(dealerID, 10)}}
	if err := c.api.Get(ctx, pathDealerInfo, values, &out); err != nil {
		return models.Dealer{}, fmt.Errorf("ledger: dealer info: %w", err)
	}
	if len(out.Items) == 0 {
		return models.Dealer{}, ErrDealerNotFound
	}
	dealer := out.Items[0].normalise()
	if dealer.ID == 0 {
		dealer.ID = dealerID
	}
	return dealer, nil
}

// ListEntries loads one page of a dealer's ledger entries.
// Query params: dealerId, startDate, endDate, sort, order.
func (c *Client) ListEntries(ctx context.Context, q store.Query) (Page[models.LedgerEntry], error) {
	values := pageValues(q)
	copyParams(values, q.Params, "dealerId", "startDate", "endDate")
	if sort := q.Params["sort"]; sort != "" {
		values.Set("sortField", sort)
		values.Set("sortOrder", q.Params["order"])
	}
	var out apiclient.List[wireEntry]
	if err := c.api.Get(ctx, pathEntries, values, &out); err != nil {
		return Page[models.LedgerEntry]{}, fmt.Errorf("ledger: list entries: %w", err)
	}
	return Page[models.LedgerEntry]{Items: normaliseAll[models.LedgerEntry](out.Items), Total: out.Total}, nil
}

// ListPayments loads one page of a dealer's payment entries. Query params: dealerId.
func (c *Client) ListPayments(ctx context.Context, q store.Query) (Page[models.PaymentEntry], error) {
	values := pageValues(q)
	copyParams(values, q.Params, "dealerId")
	var out apiclient.List[wirePayment]
	if err := c.api.Get(ctx, pathPayments, values, &out); err != nil {
		return Page[models.PaymentEntry]{}, fmt.Errorf("ledger: list payments: %w", err)
	}
	return Page[models.PaymentEntry]{Items: normaliseAll[models.PaymentEntry](out.Items), Total: out.Total}, nil
}

// PaymentMethods loads the payment method radio set. Concurrent callers share one request,
// which outlives a caller that gives up.
func (c *Client) PaymentMethods(ctx context.Context) ([]models.Option, error) {
	ch := c.methods.DoChan(paymentMethodsFlightKey, func() (any, error) {
		var out apiclient.List[wireOption]
		if err := c.api.Get(context.WithoutCancel(ctx), pathPaymentMethods, nil, &out); err != nil {
			return nil, err
		}
		return normaliseAll[models.Option](out.Items), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("ledger: payment methods: %w", res.Err)
		}
		return res.Val.([]models.Option), nil
	}
}

// CheckEntry marks one ledger entry as checked.
func (c *Client) CheckEntry(ctx context.Context, entry models.LedgerEntry) error {
	body := map[string]int64{"entryId": entry.ID}
	if err := c.api.Post(ctx, CheckEndpoint(entry.SourceType), body, nil); err != nil {
		return fmt.Errorf("ledger: check entry %d: %w", entry.ID, err)
	}
	return nil
}

// CheckPayment marks one payment entry as checked.
func (c *Client) CheckPayment(ctx context.Context, paymentID int64) error {
	body := map[string]int64{"entryId": paymentID}
	if err := c.api.Post(ctx, pathCheckPaymentEntry, body, nil); err != nil {
		return fmt.Errorf("ledger: check payment %d: %w", paymentID, err)
	}
	return nil
}

// CheckMultiple checks a batch of entries. The returned count is nil when the backend
// does not report one.
func (c *Client) CheckMultiple(ctx context.Context, ids []int64, entryType string) (*int, error) {
	body := struct {
		EntryIDs  []int64 `json:"entryIds"`
		EntryType string  `json:"entryType"`
	}{EntryIDs: ids, EntryType: entryType}
	var out struct {
		CheckedCount *int `json:"checkedCount"`
	}
	if err := c.api.Post(ctx, pathCheckMultiple, body, &out); err != nil {
		return nil, fmt.Errorf("ledger: bulk check: %w", err)
	}
	return out.CheckedCount, nil
}

// CreatePayment records a payment entry.
func (c *Client) CreatePayment(ctx context.Context, in PaymentInput) error {
	if err := c.api.Post(ctx, pathCreatePayment, in, nil); err != nil {
		return fmt.Errorf("ledger: create payment: %w", err)
	}
	return nil
}

// UpdateEntry edits one ledger entry.
func (c *Client) UpdateEntry(ctx context.Context, in EntryUpdate) error {
	if err := c.api.Put(ctx, pathUpdateEntry, in, nil); err != nil {
		return fmt.Errorf("ledger: update entry %d: %w", in.EntryID, err)
	}
	return nil
}

// ArchivePayment soft-deletes a payment entry; the backend keeps it for restore.
func (c *Client) ArchivePayment(ctx context.Context, paymentID int64, reason string) (string, error) {
	body := struct {
		PaymentID int64  `json:"paymentId"`
		Reason    string `json:"reason"`
	}{PaymentID: paymentID, Reason: reason}
	var out apiclient.Ack
	if err := c.api.Post(ctx, pathDeletePayment, body, &out); err != nil {
		return "", fmt.Errorf("ledger: archive payment %d: %w", paymentID, err)
	}
	return out.Message, nil
}

// RecalculateDealer asks the backend to recompute one dealer's balance.
func (c *Client) RecalculateDealer(ctx context.Context, dealerID int64) (string, error) {
	var out apiclient.Ack
	if err := c.api.Post(ctx, pathRecalculateDealer, map[string]int64{"dealerId": dealerID}, &out); err != nil {
		return "", fmt.Errorf("ledger: recalculate dealer %d: %w", dealerID, err)
	}
	if out.Failed() {
		return "", fmt.Errorf("ledger: recalculate dealer %d: %s", dealerID, out.Message)
	}
	return out.Message, nil
}

// RecalculateAll asks the backend to recompute every dealer's orders. It can run for minutes.
func (c *Client) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	var out struct {
		apiclient.Ack
		Summary RecalcSummary `json:"summary"`
	}
	if err := c.api.Post(ctx, pathRecalculateAll, struct{}{}, &out); err != nil {
		return RecalcSummary{}, fmt.Errorf("ledger: recalculate all: %w", err)
	}
	if out.Failed() {
		return RecalcSummary{}, fmt.Errorf("ledger: recalculate all: %s", out.Message)
	}
	return out.Summary, nil
}

// ExportEntries downloads the PDF ledger report.
func (c *Client) ExportEntries(ctx context.Context, req ExportRequest) (apiclient.Binary, error) {
	body := map[string]any{
		"dealerId":   req.DealerID,
		"dealerName": req.DealerName,
		"startDate":  formatUpstreamDate(req.Start),
		"endDate":    formatUpstreamDate(req.End),
	}
	bin, err := c.api.Download(ctx, http.MethodPost, pathExportEntries, body)
	if err != nil {
		return apiclient.Binary{}, fmt.Errorf("ledger: export entries: %w", err)
	}
	return bin, nil
}

func pageValues(q store.Query) url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("limit", strconv.Itoa(q.PageSize))
	}
	return values
}

func copyParams(values url.Values, params map[string]string, keys ...string) {
	for _, k := range keys {
		if v := params[k]; v != "" {
			values.Set(k, v)
		}
	}
}

func formatUpstreamDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(upstreamDateLayout)
}
