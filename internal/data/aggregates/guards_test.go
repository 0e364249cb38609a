package aggregates

import (
	"testing"

	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestRequireRowsAffected(t *testing.T) {
	if err := RequireRowsAffected(2, 2, "replace"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := RequireRowsAffected(1, 2, "replace")
	if err == nil {
		t.Fatalf("expected conflict error")
	}
	if !domainagg.IsCode(MapError("op", err), domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got=%v", err)
	}
}
