package aggregates

import (
	"fmt"
	"strings"
)

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireRowsAffected converts a short conditional write into a conflict.
func RequireRowsAffected(got, want int64, what string) error {
	if got == want {
		return nil
	}
	return ConflictError(fmt.Sprintf("%s: want %d rows affected, got %d", strings.TrimSpace(what), want, got))
}
