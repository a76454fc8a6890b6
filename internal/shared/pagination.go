package shared

// Pagination describes one page of a tenant-scoped listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

const defaultPerPage = 20

// NewPagination clamps the requested page/per-page and derives page counts.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset converts page/per-page into a SQL offset.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
