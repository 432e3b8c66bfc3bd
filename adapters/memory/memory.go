// Package memory provides in-memory implementations of the storage ports.
// These are the default stores for the mock; state lives for the lifetime of
// the process and is dropped wholesale on reset.
package memory

import "github.com/artpar/paymock/ports"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// pageBounds resolves a paginated window over an insertion-ordered ID slice.
// It returns the start index, the end index and whether records remain after
// the window.
func pageBounds(order []string, opts ports.ListOptions) (int, int, bool) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	start := 0
	if opts.StartingAfter != "" {
		for i, id := range order {
			if id == opts.StartingAfter {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(order) {
		end = len(order)
	}
	return start, end, end < len(order)
}

// removeID drops an ID from an insertion-order slice.
func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
