package db

import (
	"context"
	"database/sql"
	"fmt"

	"bookstore-be/internal/logger"

	"go.uber.org/zap"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner executes fn inside a single database transaction. The
// transaction commits only when fn returns nil; any error, panic or
// context cancellation rolls it back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q DBTX) error) error
}

type txRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) WithTx(ctx context.Context, fn func(q DBTX) error) (err error) {
	log := logger.FromCtx(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			log.Error("failed to rollback transaction", zap.Error(rbErr))
		} else {
			log.Debug("transaction rolled back")
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}

	committed = true
	return nil
}
