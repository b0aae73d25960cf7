// Package listview renders server-paginated, sortable tables. It holds no business logic:
// callers supply rows, totals and the actions a row exposes.
package listview

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"

	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

// Align positions cell content.
type Align string

// Alignments.
const (
	AlignLeft   Align = "left"
	AlignRight  Align = "right"
	AlignCenter Align = "center"
)

// Column describes one column of a table over rows of type R.
type Column[R any] struct {
	Key      string
	Title    string
	Sortable bool
	Align    Align
	Value    func(R) any
	Render   func(value any, row R) template.HTML
}

// Action is a per-row context action.
type Action struct {
	Label   string
	Href    string
	Method  string
	Confirm string
	Danger  bool
	Fields  map[string]string
}

// Table binds columns to a page of rows.
type Table[R any] struct {
	Columns   []Column[R]
	Rows      []R
	Total     int
	Paging    Paging
	Sort      Sort
	BaseURL   *url.URL
	EmptyText string

	RowKey     func(R) string
	RowHref    func(R) string
	Variants   func(R) []R
	Selectable func(R) bool
	Actions    func(R) []Action
}

// View is the template-ready form of a Table.
type View struct {
	Headers    []Header
	Rows       []Row
	Pager      Pager
	Empty      bool
	EmptyText  string
	Selectable bool
	HasActions bool
}

// Header is a column heading.
type Header struct {
	Key      string
	Title    string
	Align    Align
	Sortable bool
	Active   bool
	Order    string
	Href     string
}

// Row is one rendered row with optional nested variant rows.
type Row struct {
	Key        string
	Href       string
	Cells      []Cell
	Selectable bool
	Disabled   bool
	Actions    []Action
	Variants   []Row
}

// Cell is one rendered value.
type Cell struct {
	Content template.HTML
	Align   Align
}

// Pager links to neighbouring pages and page sizes.
type Pager struct {
	shared.Pagination
	PrevHref string
	NextHref string
	Sizes    []PageSize
}

// PageSize is a selectable page size.
type PageSize struct {
	Size   int
	Href   string
	Active bool
}

// Build renders the table.
func (t Table[R]) Build() View {
	paging := t.Paging
	if paging.Page <= 0 {
		paging.Page = 1
	}
	if paging.Size <= 0 {
		paging.Size = shared.DefaultPageSize
	}
	view := View{
		Empty:      len(t.Rows) == 0,
		EmptyText:  t.EmptyText,
		Selectable: t.Selectable != nil,
		HasActions: t.Actions != nil,
	}
	if view.EmptyText == "" {
		view.EmptyText = "No records found."
	}
	for _, col := range t.Columns {
		h := Header{Key: col.Key, Title: col.Title, Align: col.Align, Sortable: col.Sortable}
		if col.Sortable {
			order := OrderAsc
			if t.Sort.Field == col.Key {
				h.Active = true
				h.Order = t.Sort.Order
				if t.Sort.Order == OrderAsc {
					order = OrderDesc
				}
			}
			h.Href = withParams(t.BaseURL, map[string]string{"sort": col.Key, "order": order, "page": "1"})
		}
		view.Headers = append(view.Headers, h)
	}
	view.Rows = make([]Row, 0, len(t.Rows))
	for i, r := range t.Rows {
		view.Rows = append(view.Rows, t.row(i, r, true))
	}
	view.Pager = t.pager(paging)
	return view
}

func (t Table[R]) row(index int, r R, top bool) Row {
	out := Row{Key: strconv.Itoa(index)}
	if t.RowKey != nil {
		out.Key = t.RowKey(r)
	}
	if t.RowHref != nil {
		out.Href = t.RowHref(r)
	}
	for _, col := range t.Columns {
		var value any
		if col.Value != nil {
			value = col.Value(r)
		}
		var content template.HTML
		if col.Render != nil {
			content = col.Render(value, r)
		} else if value != nil {
			content = template.HTML(template.HTMLEscapeString(fmt.Sprint(value)))
		}
		out.Cells = append(out.Cells, Cell{Content: content, Align: col.Align})
	}
	if !top {
		return out
	}
	if t.Selectable != nil {
		out.Selectable = true
		out.Disabled = !t.Selectable(r)
	}
	if t.Actions != nil {
		out.Actions = t.Actions(r)
	}
	if t.Variants != nil {
		for j, v := range t.Variants(r) {
			child := t.row(j, v, false)
			child.Key = out.Key + "-" + child.Key
			out.Variants = append(out.Variants, child)
		}
	}
	return out
}

func (t Table[R]) pager(paging Paging) Pager {
	p := Pager{Pagination: shared.NewPagination(paging.Page, paging.Size, t.Total)}
	if p.HasPrev() {
		p.PrevHref = withParams(t.BaseURL, map[string]string{"page": strconv.Itoa(p.Page - 1)})
	}
	if p.HasNext() {
		p.NextHref = withParams(t.BaseURL, map[string]string{"page": strconv.Itoa(p.Page + 1)})
	}
	for _, size := range PageSizes {
		p.Sizes = append(p.Sizes, PageSize{
			Size:   size,
			Href:   withParams(t.BaseURL, map[string]string{"limit": strconv.Itoa(size), "page": "1"}),
			Active: size == paging.Size,
		})
	}
	return p
}
