package repo

// Paged is one page of a filtered listing, echoing the limit and offset
// that produced it.
type Paged[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// page slices items to the given window. Out-of-range offsets yield an
// empty page, never an error.
func page[T any](items []T, limit, offset int) Paged[T] {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}

	data := make([]T, end-offset)
	copy(data, items[offset:end])
	return Paged[T]{Data: data, Limit: limit, Offset: offset}
}
