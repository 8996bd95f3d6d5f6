package queryir

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/omnistate/internal/ir"
)

// identPattern matches names that are safe to splice into SQL text.
// Collection, field and relation names are interpolated; values never are.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError lists every problem found in a query or mutation.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Issues, "; ")
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidIdentifier reports whether name can be used as a table or column
// name.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// validator accumulates issues during traversal.
type validator struct {
	issues []string
}

func (v *validator) addIssue(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) ident(kind, name string) {
	if !ValidIdentifier(name) {
		v.addIssue("%s %q is not a valid identifier", kind, name)
	}
}

// literal checks a comparison value. Nulls never match under SQL
// equality and composite values cannot be bound as parameters.
func (v *validator) literal(field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil, ir.IRNull:
		v.addIssue("field %q compared to null", field)
	default:
		v.addIssue("field %q compared to non-scalar %T", field, val)
	}
}

func (v *validator) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

// Validate checks that o can be lowered and hashed: identifiers are
// SQL-safe, literals are non-null scalars, directions are asc or desc,
// and limit and offset are non-negative.
//
// Validate is a pure function with no side effects.
func (o Options) Validate() error {
	v := &validator{}
	for _, c := range o.Where {
		v.ident("where field", c.Field)
		v.literal(c.Field, c.Value)
	}
	for _, k := range o.OrderBy {
		v.ident("order field", k.Field)
		if k.Direction != Asc && k.Direction != Desc {
			v.addIssue("order field %q has direction %q, want asc or desc", k.Field, k.Direction)
		}
	}
	if o.Limit != nil && *o.Limit < 0 {
		v.addIssue("limit %d is negative", *o.Limit)
	}
	if o.Offset != nil && *o.Offset < 0 {
		v.addIssue("offset %d is negative", *o.Offset)
	}
	for _, rel := range o.Include {
		v.ident("include", rel)
	}
	if o.PK != nil {
		v.literal("pk", o.PK)
	}
	return v.err()
}

// Validate checks that m is well formed for its type.
func (m Mutation) Validate() error {
	v := &validator{}
	v.ident("collection", m.Collection)
	switch m.Type {
	case Create:
		if len(m.Data) == 0 {
			v.addIssue("create requires data")
		}
	case Update:
		if m.ID == nil {
			v.addIssue("update requires an id")
		}
		if len(m.Data) == 0 {
			v.addIssue("update requires data")
		}
	case Delete:
		if m.ID == nil {
			v.addIssue("delete requires an id")
		}
	default:
		v.addIssue("unknown mutation type %q", m.Type)
	}
	if m.ID != nil {
		v.literal("id", m.ID)
	}
	for _, field := range m.Data.SortedKeys() {
		v.ident("data field", field)
	}
	return v.err()
}
