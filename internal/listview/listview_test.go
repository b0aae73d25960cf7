package listview

import (
	"context"
	"errors"
	"html/template"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/store"
)

type row struct {
	ID       int64
	Name     string
	Checked  bool
	Variants []row
}

func columns() []Column[row] {
	return []Column[row]{
		{Key: "id", Title: "ID", Sortable: true, Value: func(r row) any { return r.ID }},
		{Key: "name", Title: "Name", Value: func(r row) any { return r.Name }},
		{Key: "flag", Title: "Flag", Render: func(_ any, r row) template.HTML {
			if r.Checked {
				return "<b>yes</b>"
			}
			return "no"
		}},
	}
}

func TestParsePagingDefaults(t *testing.T) {
	p := ParsePaging(url.Values{})
	assert.Equal(t, Paging{Page: 1, Size: 10}, p)

	p = ParsePaging(url.Values{"page": {"3"}, "limit": {"500"}})
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MaxPageSize, p.Size)

	p = ParsePaging(url.Values{"page": {"-2"}, "limit": {"abc"}})
	assert.Equal(t, Paging{Page: 1, Size: 10}, p)
}

func TestParseSortRejectsUnknownField(t *testing.T) {
	fallback := Sort{Field: "date", Order: OrderDesc}
	assert.Equal(t, fallback, ParseSort(url.Values{"sort": {"password"}}, fallback, "date", "amount"))
	assert.Equal(t, Sort{Field: "amount", Order: OrderAsc}, ParseSort(url.Values{"sort": {"amount"}, "order": {"sideways"}}, fallback, "date", "amount"))
}

func TestBuildRendersCellsAndEscapes(t *testing.T) {
	base, _ := url.Parse("/dealers/4?tab=entries")
	view := Table[row]{
		Columns: columns(),
		Rows:    []row{{ID: 1, Name: "<Alloy>", Checked: true}},
		Total:   25,
		Paging:  Paging{Page: 2, Size: 10},
		Sort:    Sort{Field: "id", Order: OrderAsc},
		BaseURL: base,
		RowKey:  func(r row) string { return strconv.FormatInt(r.ID, 10) },
	}.Build()

	require.Len(t, view.Rows, 1)
	assert.Equal(t, "1", view.Rows[0].Key)
	assert.Equal(t, template.HTML("&lt;Alloy&gt;"), view.Rows[0].Cells[1].Content)
	assert.Equal(t, template.HTML("<b>yes</b>"), view.Rows[0].Cells[2].Content)

	assert.True(t, view.Headers[0].Active)
	assert.Contains(t, view.Headers[0].Href, "order=desc")
	assert.Empty(t, view.Headers[1].Href)

	assert.Equal(t, 3, view.Pager.TotalPages)
	assert.Contains(t, view.Pager.PrevHref, "page=1")
	assert.Contains(t, view.Pager.NextHref, "page=3")
	assert.Contains(t, view.Pager.NextHref, "tab=entries")
}

func TestBuildEmptyState(t *testing.T) {
	view := Table[row]{Columns: columns()}.Build()
	assert.True(t, view.Empty)
	assert.Equal(t, "No records found.", view.EmptyText)
	assert.Equal(t, 10, view.Pager.PerPage)
	assert.Empty(t, view.Pager.NextHref)
}

func TestBuildSelectionAndVariants(t *testing.T) {
	view := Table[row]{
		Columns:    columns(),
		Rows:       []row{{ID: 1, Checked: true}, {ID: 2, Variants: []row{{ID: 21}, {ID: 22}}}},
		RowKey:     func(r row) string { return strconv.FormatInt(r.ID, 10) },
		Variants:   func(r row) []row { return r.Variants },
		Selectable: func(r row) bool { return !r.Checked },
	}.Build()

	require.Len(t, view.Rows, 2)
	assert.True(t, view.Rows[0].Disabled)
	assert.False(t, view.Rows[1].Disabled)
	require.Len(t, view.Rows[1].Variants, 2)
	assert.Equal(t, "2-21", view.Rows[1].Variants[0].Key)
	assert.False(t, view.Rows[1].Variants[0].Selectable)
}

func TestControllerFetchesOncePerPageChange(t *testing.T) {
	s := store.New()
	calls := 0
	var seen []store.Query
	ctrl := Controller[[]models.Dealer]{
		Store:  s,
		Domain: store.DomainDealers,
		Load: func(_ context.Context, q store.Query) ([]models.Dealer, error) {
			calls++
			seen = append(seen, q)
			return []models.Dealer{{ID: int64(q.Page)}}, nil
		},
		Loaded: func(q store.Query, items []models.Dealer) store.Action {
			return store.DealersLoaded{Query: q, Items: items, Total: 30}
		},
	}
	ctx := context.Background()

	first := Paging{Page: 1, Size: 10}.Query("dealers", nil)
	fetched, err := ctrl.Ensure(ctx, first)
	require.NoError(t, err)
	assert.True(t, fetched)

	fetched, err = ctrl.Ensure(ctx, first)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, 1, calls)

	second := Paging{Page: 2, Size: 10}.Query("dealers", nil)
	_, err = ctrl.Ensure(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, seen[1].Page)

	resized := Paging{Page: 2, Size: 20}.Query("dealers", nil)
	_, err = ctrl.Ensure(ctx, resized)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 20, seen[2].PageSize)

	s.Invalidate(store.DomainDealers)
	_, err = ctrl.Ensure(ctx, resized)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestControllerKeepsRowsOnFailure(t *testing.T) {
	s := store.New()
	fail := false
	ctrl := Controller[[]models.Dealer]{
		Store:  s,
		Domain: store.DomainDealers,
		Load: func(_ context.Context, q store.Query) ([]models.Dealer, error) {
			if fail {
				return nil, errors.New("upstream down")
			}
			return []models.Dealer{{ID: 9}}, nil
		},
		Loaded: func(q store.Query, items []models.Dealer) store.Action {
			return store.DealersLoaded{Query: q, Items: items, Total: 1}
		},
	}
	_, err := ctrl.Ensure(context.Background(), Paging{Page: 1, Size: 10}.Query("dealers", nil))
	require.NoError(t, err)

	fail = true
	_, err = ctrl.Ensure(context.Background(), Paging{Page: 2, Size: 10}.Query("dealers", nil))
	require.Error(t, err)

	state := s.State()
	require.Len(t, state.Dealers.Items, 1)
	assert.Equal(t, int64(9), state.Dealers.Items[0].ID)
	assert.Equal(t, "upstream down", state.Dealers.Err)
}

func TestRowsOnlyForTheRequestedQuery(t *testing.T) {
	page1 := store.Query{Scope: "entries", Page: 1, PageSize: 10}
	page2 := store.Query{Scope: "entries", Page: 2, PageSize: 10}
	s := store.Reduce(store.State{}, store.EntriesLoaded{Query: page2, Items: []models.LedgerEntry{{ID: 21}}, Total: 12})

	rows, total, ok := Rows(s.Entries, page2, false)
	require.True(t, ok)
	assert.Len(t, rows, 1)
	assert.Equal(t, 12, total)

	rows, _, ok = Rows(s.Entries, page1, false)
	assert.False(t, ok)
	assert.Nil(t, rows)

	rows, _, ok = Rows(s.Entries, page1, true)
	assert.True(t, ok, "a failed fetch keeps the last loaded rows")
	assert.Len(t, rows, 1)
}
