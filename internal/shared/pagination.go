package shared

// Pagination describes one page of a limit/offset listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

const defaultPerPage = 20

// PaginationFromOffset derives page metadata from a limit/offset window.
// Offsets inside a page round down to that page.
func PaginationFromOffset(limit, offset, total int) Pagination {
	if limit <= 0 {
		limit = defaultPerPage
	}
	if offset < 0 {
		offset = 0
	}
	if total < 0 {
		total = 0
	}
	return Pagination{
		Page:       offset/limit + 1,
		PerPage:    limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}
