package aggregates

import (
	"fmt"
	"strings"

	repos "github.com/yungbote/mes-backend/internal/data/repos"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

// SequenceAllocator hands out per-product sequence numbers inside the
// caller's transaction. TryGet reads (and on postgres locks) the counter row;
// Advance moves it forward by one only if nobody else did first.
type SequenceAllocator interface {
	TryGet(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error)
	Advance(dbc dbctx.Context, counter *production.SequenceCounter) error
}

type sequenceAllocator struct {
	counters repos.SequenceCounterRepo
}

func NewSequenceAllocator(counters repos.SequenceCounterRepo) SequenceAllocator {
	return &sequenceAllocator{counters: counters}
}

func (s *sequenceAllocator) TryGet(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error) {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return nil, nil
	}
	return s.counters.LockByProductCode(dbc, productCode)
}

func (s *sequenceAllocator) Advance(dbc dbctx.Context, counter *production.SequenceCounter) error {
	if counter == nil {
		return InvariantError("sequence counter is required")
	}
	ok, err := s.counters.CompareAndAdvance(dbc, counter.ProductCode, counter.Current)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("sequence counter for %s moved past %d", counter.ProductCode, counter.Current))
}
