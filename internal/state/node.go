package state

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/omnistate/internal/ir"
)

// Errors returned by writes.
var (
	ErrFrozen          = errors.New("state: node is frozen")
	ErrIndexOutOfRange = errors.New("state: index out of range")
	ErrWrongKind       = errors.New("state: operation not supported on this node kind")
	ErrInvalidKey      = errors.New("state: invalid key")
	ErrCycle           = errors.New("state: value contains the node it is written into")
)

// Node is a structured value in a state tree.
// This is a sealed interface - only *Object and *List implement it.
type Node interface {
	meta() *nodeMeta
}

// nodeMeta is the non-data bookkeeping carried by every node.
type nodeMeta struct {
	frozen  bool
	status  Status
	err     error
	updated time.Time
	dirty   bool
}

func (m *nodeMeta) meta() *nodeMeta { return m }

// Object is a mapping from field name to value.
type Object struct {
	nodeMeta
	fields map[string]any
}

// List is an ordered sequence of values.
type List struct {
	nodeMeta
	items []any
}

// NewObject builds an Object node from an ir object.
func NewObject(obj ir.IRObject) *Object {
	o := &Object{fields: make(map[string]any, len(obj))}
	for k, v := range obj {
		o.fields[k] = fromIR(v)
	}
	return o
}

// NewList builds a List node from an ir array.
func NewList(arr ir.IRArray) *List {
	l := &List{items: make([]any, len(arr))}
	for i, v := range arr {
		l.items[i] = fromIR(v)
	}
	return l
}

func fromIR(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRObject:
		return NewObject(val)
	case ir.IRArray:
		return NewList(val)
	case nil:
		return ir.IRNull{}
	default:
		return val
	}
}

// normalize converts a value supplied to a write into its stored form:
// a Node (kept by identity) or an ir scalar.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case *View:
		return val.node, nil
	case *Object, *List:
		return val, nil
	case ir.IRValue:
		return fromIR(val), nil
	}
	irVal, err := ir.FromAny(v)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	return fromIR(irVal), nil
}

// snapshot deep-copies a stored value into ir form.
func snapshot(v any) ir.IRValue {
	switch val := v.(type) {
	case *Object:
		out := make(ir.IRObject, len(val.fields))
		for k, f := range val.fields {
			out[k] = snapshot(f)
		}
		return out
	case *List:
		out := make(ir.IRArray, len(val.items))
		for i, item := range val.items {
			out[i] = snapshot(item)
		}
		return out
	case ir.IRValue:
		return val
	default:
		return ir.IRNull{}
	}
}

// checkAcyclic rejects storing v under target when target is reachable
// from v, which would make the tree contain itself.
func checkAcyclic(target Node, v any) error {
	if reaches(v, target, make(map[Node]bool)) {
		return ErrCycle
	}
	return nil
}

func reaches(v any, target Node, seen map[Node]bool) bool {
	n, ok := v.(Node)
	if !ok {
		return false
	}
	if n == target {
		return true
	}
	if seen[n] {
		return false
	}
	seen[n] = true
	switch val := n.(type) {
	case *Object:
		for _, f := range val.fields {
			if reaches(f, target, seen) {
				return true
			}
		}
	case *List:
		for _, item := range val.items {
			if reaches(item, target, seen) {
				return true
			}
		}
	}
	return false
}

// parseIndex parses a list key. The returned bool is false for keys that
// are not non-negative integers.
func parseIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
