package production

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/apiclient"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

const (
	pathStock      = "/v2/inventory/get-all-stock"
	pathPlans      = "/v2/production/get-production-plans"
	pathCreatePlan = "/v2/production/add-production-plan"
)

// PlanInput is the body of add-production-plan.
type PlanInput struct {
	AlloyID   int64 `json:"alloyId"`
	ConvertID int64 `json:"convertId"`
	Quantity  int   `json:"quantity"`
	Urgent    bool  `json:"urgent"`
	UserID    int64 `json:"userId"`
}

// PlanPage is one page of production plans.
type PlanPage struct {
	Items []models.ProductionPlan
	Total int
}

// Client speaks to the production and inventory endpoints of the backend.
type Client struct {
	api   *apiclient.Client
	stock singleflight.Group
}

// NewClient constructs a production Client.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// ListPlans loads one page of production plans.
func (c *Client) ListPlans(ctx context.Context, q store.Query) (PlanPage, error) {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("limit", strconv.Itoa(q.PageSize))
	}
	for _, key := range []string{"status", "search", "sortField", "sortOrder"} {
		if v := q.Params[key]; v != "" {
			values.Set(key, v)
		}
	}
	var out apiclient.List[models.ProductionPlan]
	if err := c.api.Get(ctx, pathPlans, values, &out); err != nil {
		return PlanPage{}, fmt.Errorf("production: list plans: %w", err)
	}
	return PlanPage{Items: out.Items, Total: out.Total}, nil
}

// Stock loads the full stock snapshot. Concurrent loads for the same operator share one
// upstream call.
func (c *Client) Stock(ctx context.Context) ([]models.StockRow, error) {
	key := apiclient.TokenFromContext(ctx)
	ch := c.stock.DoChan(key, func() (any, error) {
		var out apiclient.List[models.StockRow]
		if err := c.api.Get(context.WithoutCancel(ctx), pathStock, nil, &out); err != nil {
			return nil, err
		}
		return out.Items, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("production: stock snapshot: %w", res.Err)
		}
		return res.Val.([]models.StockRow), nil
	}
}

// CreatePlan creates one production plan.
func (c *Client) CreatePlan(ctx context.Context, in PlanInput) error {
	var ack apiclient.Ack
	if err := c.api.Post(ctx, pathCreatePlan, in, &ack); err != nil {
		return fmt.Errorf("production: create plan: %w", err)
	}
	if ack.Failed() {
		return &apiclient.APIError{Method: http.MethodPost, Path: pathCreatePlan, Status: http.StatusOK, Message: ack.Message}
	}
	return nil
}
