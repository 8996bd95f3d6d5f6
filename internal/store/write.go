package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Apply runs a mutation statement and appends change to the log in one
// transaction. It returns the new change seq.
//
// An update or delete that affects no row fails with ErrNotFound; a create
// that collides with an existing key fails with ErrDuplicate. Neither is
// logged.
func (s *Store) Apply(ctx context.Context, change Change, query string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply %s: begin: %w", change.Collection, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isConstraintKey(err) {
			return 0, fmt.Errorf("apply %s %s: %w", change.Collection, change.RowID, ErrDuplicate)
		}
		return 0, fmt.Errorf("apply %s: %w", change.Collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("apply %s: rows affected: %w", change.Collection, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("apply %s %s: %w", change.Collection, change.RowID, ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO omnistate_changes (collection, row_id, op) VALUES (?, ?, ?)
	`, change.Collection, change.RowID, change.Op)
	if err != nil {
		return 0, fmt.Errorf("apply %s: log change: %w", change.Collection, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("apply %s: change seq: %w", change.Collection, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply %s: commit: %w", change.Collection, err)
	}
	return seq, nil
}

func isConstraintKey(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
