package database

import (
	"classroom-api/core/logger"
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RunInTransaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (d *Database) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := d.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, context.Canceled) {
			logger.Error("Database:RunInTransaction:Rollback:Error", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
