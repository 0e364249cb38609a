package testutil

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/data/aggregates"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

// errInjectedRollback forces the wrapped transaction to roll back after a
// successful body so FailCommit behaves like a failed COMMIT.
var errInjectedRollback = errors.New("injected rollback")

// InjectedTxRunner is a test helper for aggregate integration tests.
// It supports rollback/failure injection. With DB set, the body runs inside a
// real transaction on DB so injected failures actually discard writes.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	failBeforeBody := r.FailBeforeBody
	failCommit := r.FailCommit
	db := r.DB
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.incRollback()
		return failBeforeBody
	}
	if fn == nil {
		r.incCommit()
		return nil
	}

	run := func(tx *gorm.DB) error {
		if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
			return err
		}
		if failCommit != nil {
			return errInjectedRollback
		}
		return nil
	}

	var err error
	if db != nil {
		err = db.WithContext(ctx).Transaction(run)
	} else {
		err = run(nil)
	}
	switch {
	case errors.Is(err, errInjectedRollback):
		r.incRollback()
		return failCommit
	case err != nil:
		r.incRollback()
		return err
	}
	r.incCommit()
	return nil
}

func (r *InjectedTxRunner) incCommit() {
	r.mu.Lock()
	r.CommitCalls++
	r.mu.Unlock()
}

func (r *InjectedTxRunner) incRollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}
