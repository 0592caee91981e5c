package editor

import (
	"sort"
	"strings"
)

// SortKey selects the column a view is ordered by.
type SortKey string

const (
	SortName   SortKey = "name"
	SortStatus SortKey = "status"
	SortNotes  SortKey = "notes"
)

// Sort orders a view. The zero value keeps load order.
type Sort struct {
	Key        SortKey
	Descending bool
}

// FilterAndSort returns the rows whose full name contains query (case-insensitive),
// ordered by s. Ties keep their relative order. rows is not modified.
func FilterAndSort(rows []Row, query string, s Sort) []Row {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if needle == "" || strings.Contains(strings.ToLower(row.FullName()), needle) {
			out = append(out, row)
		}
	}

	var less func(a, b Row) bool
	switch s.Key {
	case SortName:
		less = func(a, b Row) bool { return strings.ToLower(a.FullName()) < strings.ToLower(b.FullName()) }
	case SortStatus:
		less = func(a, b Row) bool { return a.Status.Priority() < b.Status.Priority() }
	case SortNotes:
		less = func(a, b Row) bool { return strings.ToLower(a.Notes) < strings.ToLower(b.Notes) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if s.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
