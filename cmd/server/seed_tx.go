package main

import (
	"context"
	"database/sql"
	"time"

	dirstore "taxcase/internal/directory/store"
	dErrors "taxcase/pkg/domain-errors"
	txcontext "taxcase/pkg/platform/tx"
)

const defaultSeedTxTimeout = 5 * time.Second

// seedPostgresTx runs the development seed inside one transaction so a
// partial directory is never left behind.
type seedPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newSeedPostgresTx(db *sql.DB) *seedPostgresTx {
	return &seedPostgresTx{db: db}
}

func (t *seedPostgresTx) Seed(ctx context.Context, w dirstore.Writer, now time.Time) (*dirstore.Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "seed aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultSeedTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var seed *dirstore.Seed
	err := txcontext.Run(ctx, t.db, func(txCtx context.Context) error {
		var err error
		seed, err = dirstore.SeedDevelopment(txCtx, w, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return seed, nil
}
