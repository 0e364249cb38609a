package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/mes-backend/internal/domain/production"
)

func TestNewErrorCapturesVariantKind(t *testing.T) {
	err := NewError(CodeConflict, "Production.TraceLedger.BindPin", "bound", &production.AlreadyBoundError{})
	if got := KindOf(err); got != production.KindAlreadyBound {
		t.Fatalf("kind: want=%q got=%q", production.KindAlreadyBound, got)
	}
	if !IsCode(err, CodeConflict) {
		t.Fatalf("expected conflict code")
	}
	var bound *production.AlreadyBoundError
	if !errors.As(err, &bound) {
		t.Fatalf("variant should stay reachable via errors.As")
	}
}

func TestKindOfWrappedErrors(t *testing.T) {
	base := NewError(CodeNotFound, "op", "missing", &production.TraceInfoNotFoundError{})
	wrapped := fmt.Errorf("handler: %w", base)
	if got := KindOf(wrapped); got != production.KindTraceInfoNotFound {
		t.Fatalf("kind: want=%q got=%q", production.KindTraceInfoNotFound, got)
	}
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("code: want=%q got=%q", CodeNotFound, got)
	}
	if KindOf(errors.New("plain")) != "" || CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no kind or code")
	}
}

func TestErrorString(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Code: CodeValidation, Op: "op", Message: "bad"}, "op: bad (validation)"},
		{&Error{Code: CodeInternal, Op: "op"}, "op (internal)"},
		{&Error{Code: CodeRetryable, Message: "busy"}, "busy (retryable)"},
		{&Error{Code: CodeConflict}, "conflict"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error(): want=%q got=%q", tc.want, got)
		}
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
}

func TestTraceLedgerContract(t *testing.T) {
	c := TraceLedgerAggregateContract
	if !c.RequiresAggregateOwnedTx() {
		t.Fatalf("trace ledger writes must own their transaction")
	}
	if !c.LocksOn(LockScopeCounterRow) || !c.LocksOn(LockScopeAggregateRoot) {
		t.Fatalf("locks: got=%v", c.Locks)
	}
}
