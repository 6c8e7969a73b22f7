package model

import (
	"net/url"
	"strconv"
)

// Page is one page of a paginated listing
type Page[T any] struct {
	Page      int  `json:"page"`
	Limit     int  `json:"limit"`
	TotalPage int  `json:"totalPage"`
	Total     int  `json:"total"`
	HasPrev   bool `json:"hasPrev"`
	HasNext   bool `json:"hasNext"`
	Data      []T  `json:"data"`
}

// PageQuery selects a page of a listing
type PageQuery struct {
	Page   int
	Limit  int
	Search string
}

// ParsePageQuery reads page, limit and search from query parameters.
// Missing or invalid values fall back to page 1 and defaultLimit.
func ParsePageQuery(q url.Values, defaultLimit int) PageQuery {
	pq := PageQuery{
		Page:   1,
		Limit:  defaultLimit,
		Search: q.Get("search"),
	}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 1 {
		pq.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		pq.Limit = l
	}

	return pq
}

// Values encodes the query for the banking API
func (q PageQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}
