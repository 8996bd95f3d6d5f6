package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	// Collection errors (E101-E109)
	ErrInvalidCollectionName = "E101" // name is not a usable identifier
	ErrReservedCollection    = "E102" // name collides with internal tables
	ErrInvalidPrimaryKey     = "E103" // primary key is not a usable identifier
	ErrUndeclaredPrimaryKey  = "E104" // fields declared without the primary key
	ErrInvalidFieldName      = "E105" // field name is not a usable identifier
	ErrPrimaryKeyType        = "E106" // primary key must be string or int

	// Seed errors (E110-E119)
	ErrSeedMissingKey   = "E110" // seed row lacks the primary key
	ErrSeedDuplicateKey = "E111" // two seed rows share a key

	// State errors (E120-E129)
	ErrStateShadowsCollection = "E120" // state holds a non-list under a collection name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled store schema.
// Returns all errors found (does not fail-fast).
func Validate(spec *StoreSpec) []ValidationError {
	var errs []ValidationError
	for _, c := range spec.Collections {
		errs = append(errs, validateCollection(c)...)

		if v, ok := spec.State[c.Name]; ok {
			if _, isList := v.(ir.IRArray); !isList {
				errs = append(errs, ValidationError{
					Field:   "state." + c.Name,
					Message: fmt.Sprintf("collection %s needs a list, state holds %T", c.Name, v),
					Code:    ErrStateShadowsCollection,
				})
			}
		}
	}
	return errs
}

func validateCollection(c CollectionSpec) []ValidationError {
	var errs []ValidationError
	field := "collection." + c.Name

	if !queryir.ValidIdentifier(c.Name) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "name must be a letter or underscore followed by letters, digits or underscores",
			Code:    ErrInvalidCollectionName,
		})
	}
	if strings.HasPrefix(c.Name, "omnistate_") || strings.HasPrefix(c.Name, "sqlite_") {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "names starting with omnistate_ or sqlite_ are reserved",
			Code:    ErrReservedCollection,
		})
	}
	if !queryir.ValidIdentifier(c.PrimaryKey) {
		errs = append(errs, ValidationError{
			Field:   field + ".primary_key",
			Message: fmt.Sprintf("invalid primary key %q", c.PrimaryKey),
			Code:    ErrInvalidPrimaryKey,
		})
	}

	if len(c.Fields) > 0 {
		declared := false
		for _, f := range c.Fields {
			if !queryir.ValidIdentifier(f.Name) {
				errs = append(errs, ValidationError{
					Field:   field + ".fields." + f.Name,
					Message: "invalid field name",
					Code:    ErrInvalidFieldName,
				})
			}
			if f.Name != c.PrimaryKey {
				continue
			}
			declared = true
			if f.Type != FieldString && f.Type != FieldInt {
				errs = append(errs, ValidationError{
					Field:   field + ".fields." + f.Name,
					Message: fmt.Sprintf("primary key must be string or int, got %s", f.Type),
					Code:    ErrPrimaryKeyType,
				})
			}
		}
		if !declared {
			errs = append(errs, ValidationError{
				Field:   field + ".fields",
				Message: fmt.Sprintf("primary key %s is not declared", c.PrimaryKey),
				Code:    ErrUndeclaredPrimaryKey,
			})
		}
	}

	seen := make(map[string]int, len(c.Seed))
	for i, row := range c.Seed {
		rowField := fmt.Sprintf("%s.seed[%d]", field, i)
		id, ok := row[c.PrimaryKey]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   rowField,
				Message: fmt.Sprintf("missing primary key %s", c.PrimaryKey),
				Code:    ErrSeedMissingKey,
			})
			continue
		}
		key, err := ir.MarshalCanonical(id)
		if err != nil {
			continue
		}
		if first, dup := seen[string(key)]; dup {
			errs = append(errs, ValidationError{
				Field:   rowField,
				Message: fmt.Sprintf("duplicate key %s (first at seed[%d])", key, first),
				Code:    ErrSeedDuplicateKey,
			})
			continue
		}
		seen[string(key)] = i
	}

	return errs
}
