// Package querysql compiles queryir values to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
)

// SQLCompiler compiles queryir selects and mutations to parameterized SQL.
//
// CRITICAL: All values are parameterized, never interpolated.
// Identifiers are interpolated and must pass queryir.ValidIdentifier.
type SQLCompiler struct {
	// PrimaryKey is the key column used for pk lookups and mutations.
	PrimaryKey string
}

// NewSQLCompiler creates a compiler keyed on pk ("id" when empty).
func NewSQLCompiler(pk string) *SQLCompiler {
	if pk == "" {
		pk = "id"
	}
	return &SQLCompiler{PrimaryKey: pk}
}

// Compile converts a queryir.Select to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// Output shape:
//
//	SELECT * FROM t [LEFT JOIN r ON t.r_id = r.id] [WHERE ...]
//	  [ORDER BY k DIR, ...] [LIMIT ?] [OFFSET ?]
//
// SQLite requires a LIMIT before OFFSET, so an offset without a limit
// compiles to LIMIT -1.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if err := checkIdent("table", q.From); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	var params []any

	if len(q.Joins) == 0 {
		b.WriteString("SELECT * FROM " + q.From)
	} else {
		b.WriteString("SELECT " + q.From + ".* FROM " + q.From)
	}
	for _, j := range q.Joins {
		for _, id := range []string{j.Table, j.LocalKey, j.ForeignKey} {
			if err := checkIdent("join", id); err != nil {
				return "", nil, err
			}
		}
		fmt.Fprintf(&b, " LEFT JOIN %s ON %s.%s = %s.%s",
			j.Table, q.From, j.LocalKey, j.Table, j.ForeignKey)
	}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter, qualifier(q))
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + filterSQL)
		params = append(params, filterParams...)
	}

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			if err := checkIdent("order", o.Field); err != nil {
				return "", nil, err
			}
			dir, err := direction(o.Direction)
			if err != nil {
				return "", nil, err
			}
			parts[i] = qualifier(q) + o.Field + " " + dir
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	switch {
	case q.Limit != nil:
		b.WriteString(" LIMIT ?")
		params = append(params, int64(*q.Limit))
	case q.Offset != nil:
		b.WriteString(" LIMIT -1")
	}
	if q.Offset != nil {
		b.WriteString(" OFFSET ?")
		params = append(params, int64(*q.Offset))
	}

	return b.String(), params, nil
}

// CompileMutation converts a mutation to an INSERT, UPDATE or DELETE
// keyed by the primary key. Data columns are emitted in sorted order.
func (c *SQLCompiler) CompileMutation(m queryir.Mutation) (string, []any, error) {
	if err := m.Validate(); err != nil {
		return "", nil, err
	}
	if err := checkIdent("primary key", c.PrimaryKey); err != nil {
		return "", nil, err
	}

	switch m.Type {
	case queryir.Create:
		data := m.Data
		if m.ID != nil {
			data = data.Clone()
			data[c.PrimaryKey] = m.ID
		}
		cols := data.SortedKeys()
		params := make([]any, len(cols))
		for i, col := range cols {
			p, err := columnParam(data[col])
			if err != nil {
				return "", nil, fmt.Errorf("column %s: %w", col, err)
			}
			params[i] = p
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			m.Collection, strings.Join(cols, ", "), placeholders)
		return sql, params, nil

	case queryir.Update:
		cols := m.Data.SortedKeys()
		sets := make([]string, 0, len(cols))
		params := make([]any, 0, len(cols)+1)
		for _, col := range cols {
			if col == c.PrimaryKey {
				continue
			}
			p, err := columnParam(m.Data[col])
			if err != nil {
				return "", nil, fmt.Errorf("column %s: %w", col, err)
			}
			sets = append(sets, col+" = ?")
			params = append(params, p)
		}
		if len(sets) == 0 {
			return "", nil, fmt.Errorf("update of %s changes no columns", m.Collection)
		}
		id, err := irValueToParam(m.ID)
		if err != nil {
			return "", nil, fmt.Errorf("id: %w", err)
		}
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			m.Collection, strings.Join(sets, ", "), c.PrimaryKey)
		return sql, append(params, id), nil

	default: // queryir.Delete; Validate rejected anything else
		id, err := irValueToParam(m.ID)
		if err != nil {
			return "", nil, fmt.Errorf("id: %w", err)
		}
		sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", m.Collection, c.PrimaryKey)
		return sql, []any{id}, nil
	}
}

// CompileLookup builds a SELECT of the rows of table whose column is one
// of keys. It is used to load included relations.
//
//	SELECT * FROM table WHERE column IN (?, ...) ORDER BY column ASC
func (c *SQLCompiler) CompileLookup(table, column string, keys []ir.IRValue) (string, []any, error) {
	if err := checkIdent("table", table); err != nil {
		return "", nil, err
	}
	if err := checkIdent("column", column); err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("lookup in %s needs at least one key", table)
	}
	params := make([]any, len(keys))
	for i, k := range keys {
		p, err := irValueToParam(k)
		if err != nil {
			return "", nil, fmt.Errorf("key %d: %w", i, err)
		}
		params[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s) ORDER BY %s ASC",
		table, column, placeholders, column)
	return sql, params, nil
}

// qualifier prefixes columns with the base table when joins could make
// them ambiguous.
func qualifier(q queryir.Select) string {
	if len(q.Joins) == 0 {
		return ""
	}
	return q.From + "."
}

func direction(d queryir.Direction) (string, error) {
	switch d {
	case queryir.Asc, "":
		return "ASC", nil
	case queryir.Desc:
		return "DESC", nil
	default:
		return "", fmt.Errorf("unsupported sort direction %q", d)
	}
}

func checkIdent(kind, name string) error {
	if !queryir.ValidIdentifier(name) {
		return fmt.Errorf("%s identifier %s is not valid", kind, strconv.Quote(name))
	}
	return nil
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, qual string) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred, qual)
	case queryir.And:
		return c.compileAnd(pred, qual)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?".
func (c *SQLCompiler) compileEquals(eq queryir.Equals, qual string) (string, []any, error) {
	if err := checkIdent("field", eq.Field); err != nil {
		return "", nil, err
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return qual + eq.Field + " = ?", []any{param}, nil
}

// compileAnd compiles an And predicate to a conjunction.
func (c *SQLCompiler) compileAnd(and queryir.And, qual string) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	sqlParts := make([]string, 0, len(and.Predicates))
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred, qual)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// columnParam converts a column value for INSERT and UPDATE. Arrays and
// objects are stored as JSON text.
func columnParam(v ir.IRValue) (any, error) {
	switch v.(type) {
	case ir.IRArray, ir.IRObject:
		data, err := ir.MarshalIRValue(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return irValueToParam(v)
	}
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL
// parameter. Arrays and objects cannot be bound.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
