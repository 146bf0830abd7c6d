// Package errors provides custom error types for product-related operations.
package errors

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrProductNotFound is returned when no product exists with the requested ID.
	ErrProductNotFound = errors.New("product not found")
	// ErrIDMismatch is returned when the ID in the request body differs from the one in the path.
	ErrIDMismatch = errors.New("product ID mismatch")
	// ErrStorage wraps every failure of the underlying store.
	ErrStorage = errors.New("storage failure")
	// ErrUpdateConflict is returned by the store when an update matched no row.
	ErrUpdateConflict = errors.New("update affected no rows")
)

// ValidationError lists the fields of a product payload that failed validation
// together with the rule each one broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("invalid product:")
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(e.Fields[name])
		b.WriteString(";")
	}
	return b.String()
}
