package shared

import "math"

// Pagination contains metadata for paginated listings. Total is always the
// count of records visible to the requester: visibility filtering happens
// before this is computed, never after.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Slice returns the bounds of the requested page over a filtered result set
// of length total.
func (p Pagination) Slice(total int) (lo, hi int) {
	lo = (p.Page - 1) * p.PerPage
	if lo > total {
		lo = total
	}
	hi = lo + p.PerPage
	if hi > total {
		hi = total
	}
	return lo, hi
}
