package util

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Pagination turns 1-based page/size query params into an offset and a
// clamped limit for the search index.
func Pagination(page, size int) (from, limit int) {
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * size, size
}
