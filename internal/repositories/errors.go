package repositories

import (
	"errors"
	"strings"
)

// Sentinel errors shared by all repository implementations. Callers match
// with errors.Is; implementations wrap them with context.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicatePaymentReference indicates an order already exists for the
	// payment reference. Settlement treats this as an idempotent no-op.
	ErrDuplicatePaymentReference = errors.New("duplicate payment reference")
	// ErrStockConflict indicates a guarded stock decrement matched no rows,
	// i.e. the decrement would have driven stock negative.
	ErrStockConflict = errors.New("insufficient stock for decrement")
)

// isUniqueViolation reports whether err is a unique-constraint violation.
// Matched on the driver message so it covers both Postgres ("duplicate key")
// and SQLite ("UNIQUE constraint failed").
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint")
}
