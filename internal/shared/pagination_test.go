package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationFromOffset(t *testing.T) {
	cases := []struct {
		limit, offset, total int
		want                 Pagination
	}{
		{10, 0, 0, Pagination{Page: 1, PerPage: 10, Total: 0, TotalPages: 0}},
		{10, 0, 10, Pagination{Page: 1, PerPage: 10, Total: 10, TotalPages: 1}},
		{10, 20, 21, Pagination{Page: 3, PerPage: 10, Total: 21, TotalPages: 3}},
		{10, 15, 40, Pagination{Page: 2, PerPage: 10, Total: 40, TotalPages: 4}},
		{0, -5, 45, Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PaginationFromOffset(tc.limit, tc.offset, tc.total))
	}
}
