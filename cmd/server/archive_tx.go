package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "github.com/okatech-org/digitalium-archive/pkg/domain-errors"
	txcontext "github.com/okatech-org/digitalium-archive/pkg/platform/tx"
)

const defaultArchiveTxTimeout = 5 * time.Second

// archivePostgresTx runs engine operations inside one database transaction.
// The transaction travels through the context, so the document store and the
// audit outbox write to the same tx and commit together.
type archivePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newArchivePostgresTx(db *sql.DB) *archivePostgresTx {
	return &archivePostgresTx{db: db}
}

func (t *archivePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultArchiveTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
