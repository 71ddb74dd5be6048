package common

import "net/http"

// MaxPerPage caps the page size accepted from clients.
const MaxPerPage = 200

// Pagination is the page metadata returned next to list data.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

// ParsePagination reads ?page= (1-based) and ?limit= from r.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = max(AtoiDefault(q.Get("page"), 1), 1)
	perPage = AtoiDefault(q.Get("limit"), defaultPerPage)
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return page, min(perPage, MaxPerPage)
}

// Fetch is how many rows to load to serve page and learn whether another
// page follows.
func (p Pagination) Fetch() int {
	return p.Page*p.PerPage + 1
}

// Window slices the rows of the current page out of rows loaded with Fetch
// and sets HasMore.
func Window[T any](p *Pagination, rows []T) []T {
	start := min((p.Page-1)*p.PerPage, len(rows))
	end := start + p.PerPage
	p.HasMore = len(rows) > end
	return rows[start:min(end, len(rows))]
}
