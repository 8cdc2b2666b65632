package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

type TxManager struct {
	pool *pgxpool.Pool
	log  *log.Logger
}

func NewTxManager(pool *pgxpool.Pool, logger *log.Logger) *TxManager {
	return &TxManager{
		pool: pool,
		log:  logger,
	}
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error. The deferred rollback after a commit is a no-op.
func (t *TxManager) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			t.log.Error("failed to rollback tx", log.Err(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
