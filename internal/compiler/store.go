package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/store"
)

// FieldType is the kind of a declared collection field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
	FieldArray  FieldType = "array"
	FieldObject FieldType = "object"
)

// Field is one declared field of a collection.
type Field struct {
	Name string
	Type FieldType
}

// CollectionSpec is a compiled collection declaration.
type CollectionSpec struct {
	Name       string
	PrimaryKey string
	Fields     []Field
	Seed       []ir.IRObject
}

// StoreSpec is a compiled store schema. Collections keep declaration
// order.
type StoreSpec struct {
	State       ir.IRObject
	Collections []CollectionSpec
}

// Collection returns the named collection.
func (s *StoreSpec) Collection(name string) (CollectionSpec, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return CollectionSpec{}, false
}

// InitialState returns a copy of the declared state with an empty list
// for every collection the state does not already hold.
func (s *StoreSpec) InitialState() ir.IRObject {
	out := s.State.Clone()
	if out == nil {
		out = ir.IRObject{}
	}
	for _, c := range s.Collections {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = ir.IRArray{}
		}
	}
	return out
}

// Table maps the collection to a SQLite table. Arrays and objects become
// JSON columns.
func (c CollectionSpec) Table() store.TableSpec {
	t := store.TableSpec{Name: c.Name, PrimaryKey: c.PrimaryKey}
	for _, f := range c.Fields {
		col := store.Column{Name: f.Name}
		switch f.Type {
		case FieldInt:
			col.Type = store.TypeInteger
		case FieldBool:
			col.Type = store.TypeBoolean
		case FieldArray, FieldObject:
			col.Type = store.TypeJSON
		default:
			col.Type = store.TypeText
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

// CompileStore parses a CUE value into a StoreSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the store struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	spec, err := CompileStore(v.LookupPath(cue.ParsePath("store")))
func CompileStore(v cue.Value) (*StoreSpec, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "store", Message: "store is required"}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &StoreSpec{State: ir.IRObject{}}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if stateVal.Exists() {
		state, err := toIR(stateVal, "state")
		if err != nil {
			return nil, err
		}
		obj, ok := state.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: "state", Message: "state must be a struct", Pos: stateVal.Pos()}
		}
		spec.State = obj
	}

	collVal := v.LookupPath(cue.ParsePath("collection"))
	if collVal.Exists() {
		iter, err := collVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			c, err := compileCollection(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Collections = append(spec.Collections, c)
		}
	}

	return spec, nil
}

func compileCollection(name string, v cue.Value) (CollectionSpec, error) {
	c := CollectionSpec{Name: name, PrimaryKey: "id"}
	field := "collection." + name

	if pkVal := v.LookupPath(cue.ParsePath("primary_key")); pkVal.Exists() {
		pk, err := pkVal.String()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.PrimaryKey = pk
	}

	if fieldsVal := v.LookupPath(cue.ParsePath("fields")); fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return c, formatCUEError(err)
		}
		for iter.Next() {
			ft, err := fieldType(iter.Value(), field+".fields."+iter.Label())
			if err != nil {
				return c, err
			}
			c.Fields = append(c.Fields, Field{Name: iter.Label(), Type: ft})
		}
	}

	if seedVal := v.LookupPath(cue.ParsePath("seed")); seedVal.Exists() {
		seed, err := toIR(seedVal, field+".seed")
		if err != nil {
			return c, err
		}
		rows, ok := seed.(ir.IRArray)
		if !ok {
			return c, &CompileError{Field: field + ".seed", Message: "seed must be a list", Pos: seedVal.Pos()}
		}
		for i, r := range rows {
			obj, ok := r.(ir.IRObject)
			if !ok {
				return c, &CompileError{
					Field:   fmt.Sprintf("%s.seed[%d]", field, i),
					Message: "seed rows must be structs",
					Pos:     seedVal.Pos(),
				}
			}
			c.Seed = append(c.Seed, obj)
		}
	}

	return c, nil
}

// fieldType converts a CUE type to a FieldType.
// Floats are forbidden - use int instead.
func fieldType(v cue.Value, field string) (FieldType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return FieldString, nil
	case cue.IntKind:
		return FieldInt, nil
	case cue.BoolKind:
		return FieldBool, nil
	case cue.ListKind:
		return FieldArray, nil
	case cue.StructKind:
		return FieldObject, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   field,
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// toIR converts a concrete CUE value to an ir value.
func toIR(v cue.Value, field string) (ir.IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := toIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.IRObject{}
		for iter.Next() {
			elem, err := toIR(iter.Value(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: field, Message: "float values are forbidden - use int instead", Pos: v.Pos()}
	case cue.BottomKind:
		return nil, &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()), Pos: v.Pos()}
	}
}

// CompileSource compiles CUE source text holding a top-level store field.
// filename only labels positions in errors.
func CompileSource(src, filename string) (*StoreSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileStore(v.LookupPath(cue.ParsePath("store")))
}
