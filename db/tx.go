package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/repositories"
)

var ErrNilDB = errors.New("database handle is nil")

// Transactor runs fn inside one database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	return &Transactor{db: db, logger: logger}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) (txErr error) {
	if t.db == nil {
		return ErrNilDB
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				t.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
