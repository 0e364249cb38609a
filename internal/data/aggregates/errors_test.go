package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/domain/production"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_PostgresCodes(t *testing.T) {
	cases := map[string]domainagg.ErrorCode{
		"23505": domainagg.CodeConflict,
		"23503": domainagg.CodePreconditionFailed,
		"40001": domainagg.CodeRetryable,
		"40P01": domainagg.CodeRetryable,
	}
	for code, want := range cases {
		err := MapError("op", fmt.Errorf("insert: %w", &pgconn.PgError{Code: code}))
		if !domainagg.IsCode(err, want) {
			t.Fatalf("pg %s: want=%s got=%s", code, want, domainagg.CodeOf(err))
		}
	}
}

func TestMapError_SQLiteMessages(t *testing.T) {
	if err := MapError("op", errors.New("database is locked")); !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("locked: want=retryable got=%s", domainagg.CodeOf(err))
	}
	if err := MapError("op", errors.New("UNIQUE constraint failed: trace_info.pin")); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("unique: want=conflict got=%s", domainagg.CodeOf(err))
	}
}

func TestMapError_LedgerVariants(t *testing.T) {
	cases := []struct {
		err  production.Variant
		want domainagg.ErrorCode
	}{
		{&production.WorkOrderNotFoundError{}, domainagg.CodeNotFound},
		{&production.TraceInfoNotFoundError{}, domainagg.CodeNotFound},
		{&production.BomItemNotFoundError{}, domainagg.CodeNotFound},
		{&production.ProcItemNotFoundError{}, domainagg.CodeNotFound},
		{&production.WorkOrderNotExecutingError{}, domainagg.CodePreconditionFailed},
		{&production.WorkOrderFinishedError{}, domainagg.CodePreconditionFailed},
		{&production.WorkOrderNotReadyError{}, domainagg.CodePreconditionFailed},
		{&production.WorkOrderQuotaExceedsError{}, domainagg.CodeInvariantViolation},
		{&production.BomItemExceedsQuotaError{}, domainagg.CodeInvariantViolation},
		{&production.AlreadyBoundError{}, domainagg.CodeConflict},
		{&production.AlreadyDeletedError{}, domainagg.CodeConflict},
		{&production.AlreadyExistsError{}, domainagg.CodeConflict},
		{&production.MiscError{Message: "x"}, domainagg.CodeInternal},
	}
	for _, tc := range cases {
		err := MapError("op", tc.err)
		if !domainagg.IsCode(err, tc.want) {
			t.Fatalf("%s: want=%s got=%s", tc.err.Kind(), tc.want, domainagg.CodeOf(err))
		}
		if got := domainagg.KindOf(err); got != tc.err.Kind() {
			t.Fatalf("kind: want=%s got=%s", tc.err.Kind(), got)
		}
		var v production.Variant
		if !errors.As(err, &v) || v != tc.err {
			t.Fatalf("%s: variant not reachable via errors.As", tc.err.Kind())
		}
	}
}
