package listview

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

// MaxPageSize bounds the page size a request may ask for.
const MaxPageSize = 100

// PageSizes are offered by the pager.
var PageSizes = []int{10, 20, 50, 100}

// Paging is the server-side page selection of a list.
type Paging struct {
	Page int
	Size int
}

// ParsePaging reads page and limit from the query string.
func ParsePaging(values url.Values) Paging {
	p := Paging{Page: 1, Size: shared.DefaultPageSize}
	if n, err := strconv.Atoi(values.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		p.Size = min(n, MaxPageSize)
	}
	return p
}

// Query builds the store query for scope with the given filters.
func (p Paging) Query(scope string, params map[string]string) store.Query {
	return store.Query{Scope: scope, Page: p.Page, PageSize: p.Size, Params: params}
}

// Sort is the requested ordering.
type Sort struct {
	Field string
	Order string
}

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ParseSort reads sort and order, accepting only the allowed fields.
func ParseSort(values url.Values, fallback Sort, allowed ...string) Sort {
	field := strings.TrimSpace(values.Get("sort"))
	ok := false
	for _, a := range allowed {
		if a == field {
			ok = true
			break
		}
	}
	if !ok {
		return fallback
	}
	order := strings.ToLower(values.Get("order"))
	if order != OrderAsc && order != OrderDesc {
		order = OrderAsc
	}
	return Sort{Field: field, Order: order}
}

// Params returns the sort as query params.
func (s Sort) Params() map[string]string {
	if s.Field == "" {
		return nil
	}
	return map[string]string{"sort": s.Field, "order": s.Order}
}

func withParams(base *url.URL, set map[string]string) string {
	if base == nil {
		base = &url.URL{}
	}
	u := *base
	q := u.Query()
	for k, v := range set {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.RequestURI()
}
