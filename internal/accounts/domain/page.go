package domain

// Page is one slice of a paginated query. PageNumber is 1-based.
type Page[T any] struct {
	Data         []T
	TotalRecords int64
	PageNumber   int
	PageSize     int
}

// TotalPages is the number of pages needed for TotalRecords.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalRecords + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// Offset is the number of rows skipped before page pageNumber.
func Offset(pageNumber, pageSize int) int {
	return (pageNumber - 1) * pageSize
}
