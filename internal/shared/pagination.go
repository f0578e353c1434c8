package shared

import (
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultPage is used when the page parameter is missing or invalid.
	DefaultPage = 1
	// DefaultLimit is used when the limit parameter is missing or invalid.
	DefaultLimit = 10
	// MaxLimit caps the page size.
	MaxLimit = 100

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultLimit
	}
	if page <= 0 {
		page = DefaultPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// ListParams holds the common sort and paging query parameters.
type ListParams struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// ListParamsFromQuery reads page, limit, sortBy and order from query values.
func ListParamsFromQuery(get func(string) string) ListParams {
	page, _ := strconv.Atoi(get("page"))
	limit, _ := strconv.Atoi(get("limit"))
	params := ListParams{
		Page:   page,
		Limit:  limit,
		SortBy: strings.TrimSpace(get("sortBy")),
		Order:  strings.ToLower(strings.TrimSpace(get("order"))),
	}
	return params.Normalize()
}

// Normalize applies defaults and bounds.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Order != SortDesc {
		p.Order = SortAsc
	}
	return p
}

// Offset returns the number of items to skip.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Desc reports whether descending order was requested.
func (p ListParams) Desc() bool {
	return p.Order == SortDesc
}

// Page is the list envelope returned by collection endpoints.
type Page[T any] struct {
	Message string `json:"message,omitempty"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
	Data    []T    `json:"data"`
}

// NewPage builds the envelope for items out of total.
func NewPage[T any](message string, items []T, total int, params ListParams) Page[T] {
	meta := NewPagination(params.Page, params.Limit, total)
	if items == nil {
		items = []T{}
	}
	return Page[T]{Message: message, Total: total, Page: meta.Page, Pages: meta.TotalPages, Data: items}
}
