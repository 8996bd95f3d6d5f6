package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/omnistate/internal/ir"
)

// Change is one entry of the change log.
type Change struct {
	Seq        int64
	Collection string
	RowID      string
	Op         string
}

// QueryRows runs a SELECT and returns each row as an ir.IRObject keyed by
// column name. Returns an empty array (not nil) when nothing matches.
func (s *Store) QueryRows(ctx context.Context, query string, args ...any) (ir.IRArray, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	out := ir.IRArray{}
	for rows.Next() {
		obj, err := scanObject(rows, types)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func scanObject(rows *sql.Rows, types []*sql.ColumnType) (ir.IRObject, error) {
	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	obj := make(ir.IRObject, len(types))
	for i, ct := range types {
		v, err := decodeValue(ct.DatabaseTypeName(), raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
		}
		obj[ct.Name()] = v
	}
	return obj, nil
}

// LatestChange returns the seq of the newest change to collection, or 0
// when it has none.
func (s *Store) LatestChange(ctx context.Context, collection string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM omnistate_changes WHERE collection = ?
	`, collection).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest change %s: %w", collection, err)
	}
	return seq, nil
}

// ChangesSince returns the changes to collection with seq greater than
// after, oldest first.
func (s *Store) ChangesSince(ctx context.Context, collection string, after int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, collection, row_id, op
		FROM omnistate_changes
		WHERE collection = ? AND seq > ?
		ORDER BY seq ASC
	`, collection, after)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.Seq, &c.Collection, &c.RowID, &c.Op); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}
