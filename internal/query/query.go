// Package query builds the WHERE/ORDER BY/LIMIT parts shared by every list
// endpoint: exact-match filters, case-insensitive substring search, ordering
// over a whitelist, and page-number pagination.
package query

import (
	"fmt"
	"net/url"
	"strings"
)

// Builder accumulates AND-ed predicates with positional placeholders.
// Handlers always seed it with the owner predicate first, so a query can
// never escape the authenticated user's rows.
type Builder struct {
	conds []string
	args  []interface{}
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Filter adds an exact-match condition on a column.
func (b *Builder) Filter(column string, value interface{}) *Builder {
	b.args = append(b.args, value)
	b.conds = append(b.conds, fmt.Sprintf("%s = $%d", column, len(b.args)))
	return b
}

// Search adds a case-insensitive substring condition OR-ed over the given
// columns. An empty term is a no-op.
func (b *Builder) Search(term string, columns ...string) *Builder {
	if term == "" {
		return b
	}
	b.args = append(b.args, "%"+term+"%")
	n := len(b.args)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
	}
	b.conds = append(b.conds, "("+strings.Join(parts, " OR ")+")")
	return b
}

// Where renders the accumulated conditions, including the leading keyword.
func (b *Builder) Where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *Builder) Args() []interface{} {
	return b.args
}

// OrderBy turns an ordering query param into an ORDER BY clause. A leading
// "-" means descending. A field outside the whitelist falls back to the
// default ordering rather than erroring, matching the list contract.
func OrderBy(param, def string, allowed ...string) string {
	field := param
	if field == "" {
		field = def
	}
	desc := strings.HasPrefix(field, "-")
	field = strings.TrimPrefix(field, "-")

	ok := false
	for _, a := range allowed {
		if field == a {
			ok = true
			break
		}
	}
	if !ok {
		return OrderBy(def, def, allowed...)
	}

	clause := " ORDER BY " + field
	if desc {
		clause += " DESC"
	}
	return clause
}

// ClampPageSize applies the default page size and the maximum cap.
func ClampPageSize(size, def, max int) int {
	if size <= 0 {
		return def
	}
	if size > max {
		return max
	}
	return size
}

// Paginated is the envelope returned by every list endpoint. Next and
// Previous are absolute URLs of the adjacent pages, or null at the edges.
type Paginated struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// Paginate assembles the envelope for one page of results. baseURL is the
// endpoint URL without a query string; params are the request's query
// params, reused so filters survive in the page links.
func Paginate(count, page, pageSize int, baseURL string, params url.Values, results interface{}) Paginated {
	p := Paginated{Count: count, Results: results}

	pageLink := func(n int) *string {
		q := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("page", fmt.Sprintf("%d", n))
		link := baseURL + "?" + q.Encode()
		return &link
	}

	if page*pageSize < count {
		p.Next = pageLink(page + 1)
	}
	if page > 1 {
		p.Previous = pageLink(page - 1)
	}
	return p
}
