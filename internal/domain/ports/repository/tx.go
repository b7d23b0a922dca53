package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories must accept NoTX and run on the pool in that case.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction. The tx handle
// passed to fn is handed to every repository call that must join it. A non-nil
// error from fn rolls the transaction back. Callbacks registered with
// AfterCommit on fn's ctx run once the commit succeeded.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type txHooksKey struct{}

// TxHooks collects AfterCommit callbacks of one transaction.
type TxHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// WithTxHooks returns a ctx that collects AfterCommit callbacks into the
// returned hooks. Transaction managers call Run after a successful commit and
// drop the hooks on rollback.
func WithTxHooks(ctx context.Context) (context.Context, *TxHooks) {
	h := &TxHooks{}
	return context.WithValue(ctx, txHooksKey{}, h), h
}

// Run calls the collected callbacks in registration order.
func (h *TxHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits. Outside
// a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(txHooksKey{}).(*TxHooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}
