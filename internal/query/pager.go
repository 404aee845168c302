package query

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pager describes the current page of a listing.
type Pager struct {
	Page      int    `json:"page"`
	PageCount int    `json:"pageCount"`
	Total     int    `json:"total"`
	PageSize  int    `json:"pageSize"`
	NextPage  string `json:"nextPage,omitempty"`
	PrevPage  string `json:"prevPage,omitempty"`
}

// NewPager computes page counts for total results.
func NewPager(p Pagination, total int) *Pager {
	size := p.size()
	pageCount := (total + size - 1) / size
	if pageCount < 1 {
		pageCount = 1
	}
	return &Pager{Page: p.page(), PageCount: pageCount, Total: total, PageSize: size}
}

// Link fills next and previous page links relative to base, keeping every
// other request parameter.
func (p *Pager) Link(base string, params url.Values) {
	link := func(page int) string {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		return fmt.Sprintf("%s?%s", base, q.Encode())
	}
	if p.Page < p.PageCount {
		p.NextPage = link(p.Page + 1)
	}
	if p.Page > 1 {
		p.PrevPage = link(p.Page - 1)
	}
}
