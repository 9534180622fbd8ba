// Package pagination implements the limit/offset slicing contract shared by
// card listing and card search.
package pagination

// Meta describes one page of a larger result set
type Meta struct {
	Limit      int
	Offset     int
	Returned   int
	TotalFound int
	HasMore    bool
}

// Page slices items to the [offset, offset+limit) window and reports the
// page metadata. HasMore is true when offset+limit < len(items). Negative
// limit or offset are clamped to zero; callers are expected to reject them
// before reaching this point.
func Page[T any](items []T, limit, offset int) ([]T, Meta) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	total := len(items)

	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := items[start:end]

	return page, Meta{
		Limit:      limit,
		Offset:     offset,
		Returned:   len(page),
		TotalFound: total,
		HasMore:    offset+limit < total,
	}
}
