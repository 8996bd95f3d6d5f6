package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/omnistate/internal/queryir"
)

// ColumnType is the declared SQLite type of a column. The declared type
// drives how stored values decode back into ir values.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeJSON    ColumnType = "JSON"
)

// Column describes one column of a collection table.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
}

// TableSpec describes a collection table. The primary key column is
// added as TEXT when Columns does not list it.
type TableSpec struct {
	Name       string
	PrimaryKey string
	Columns    []Column
}

// Validate checks identifiers, column types and duplicate columns.
func (t TableSpec) Validate() error {
	if !queryir.ValidIdentifier(t.Name) {
		return fmt.Errorf("table %q: invalid name", t.Name)
	}
	if strings.HasPrefix(t.Name, "omnistate_") || strings.HasPrefix(t.Name, "sqlite_") {
		return fmt.Errorf("table %q: reserved name", t.Name)
	}
	if !queryir.ValidIdentifier(t.pk()) {
		return fmt.Errorf("table %s: invalid primary key %q", t.Name, t.pk())
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if !queryir.ValidIdentifier(c.Name) {
			return fmt.Errorf("table %s: invalid column %q", t.Name, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case TypeText, TypeInteger, TypeBoolean, TypeJSON:
		default:
			return fmt.Errorf("table %s: column %s has unknown type %q", t.Name, c.Name, c.Type)
		}
	}
	return nil
}

func (t TableSpec) pk() string {
	if t.PrimaryKey == "" {
		return "id"
	}
	return t.PrimaryKey
}

// CreateSQL returns the CREATE TABLE IF NOT EXISTS statement for t.
func (t TableSpec) CreateSQL() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	pk := t.pk()
	defs := make([]string, 0, len(t.Columns)+1)
	hasPK := false
	for _, c := range t.Columns {
		def := c.Name + " " + string(c.Type)
		if c.Name == pk {
			hasPK = true
			def += " PRIMARY KEY"
		} else if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if !hasPK {
		defs = append([]string{pk + " TEXT PRIMARY KEY"}, defs...)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", ")), nil
}

// EnsureTable creates the table described by t if it does not exist.
// An existing table is left as is.
func (s *Store) EnsureTable(ctx context.Context, t TableSpec) error {
	stmt, err := t.CreateSQL()
	if err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure table %s: %w", t.Name, err)
	}
	return nil
}
