package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
)

// PendingFunc is consulted before every read. Returning a non-nil handle
// suspends the read of key.
type PendingFunc func(key string) *Pending

// tree holds what every view of one Define call shares.
type tree struct {
	mu       sync.Mutex
	onChange func()
	pending  PendingFunc
	now      func() time.Time
}

// Option configures a state tree.
type Option func(*tree)

// WithOnChange installs a global callback invoked after every write
// anywhere in the tree, once the affected buses have been notified.
func WithOnChange(fn func()) Option {
	return func(t *tree) {
		t.onChange = fn
	}
}

// WithPending installs the pending-value predicate.
func WithPending(fn PendingFunc) Option {
	return func(t *tree) {
		t.pending = fn
	}
}

// WithClock overrides the wall clock used for MetaState.LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(t *tree) {
		t.now = now
	}
}

// View is the interception layer over one node.
type View struct {
	tree   *tree
	node   Node
	parent *View
	bus    *notify.Bus[notify.Void]

	// children caches the wrappers handed out for nodes read through this
	// view. Entries are dropped when a write removes the node from here.
	children map[Node]*View
}

// Define creates a state tree from an initial value and returns its root view.
func Define(initial ir.IRObject, opts ...Option) *View {
	if initial == nil {
		initial = ir.IRObject{}
	}
	return Wrap(NewObject(initial), opts...)
}

// Wrap returns a root view over an existing node. Each call starts a new
// tree with its own callback and predicate, so each call yields a distinct
// wrapper. Nothing is retained on the node.
func Wrap(n Node, opts ...Option) *View {
	t := &tree{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	m := n.meta()
	if m.updated.IsZero() {
		m.updated = t.now()
	}
	return &View{tree: t, node: n, bus: notify.New[notify.Void]()}
}

// childLocked returns the cached wrapper for n read through v or creates
// one. Caller holds v.tree.mu.
func (v *View) childLocked(n Node) *View {
	if c, ok := v.children[n]; ok {
		return c
	}
	if v.children == nil {
		v.children = make(map[Node]*View)
	}
	c := &View{
		tree:   v.tree,
		node:   n,
		parent: v,
		bus:    notify.New[notify.Void](),
	}
	v.children[n] = c
	return c
}

// forgetLocked drops the cached wrapper for old unless v still holds it.
// Caller holds v.tree.mu.
func (v *View) forgetLocked(old any) {
	n, ok := old.(Node)
	if !ok || v.children[n] == nil {
		return
	}
	switch cur := v.node.(type) {
	case *Object:
		for _, f := range cur.fields {
			if f == old {
				return
			}
		}
	case *List:
		if slices.Contains(cur.items, old) {
			return
		}
	}
	delete(v.children, n)
}

// Node returns the wrapped node.
func (v *View) Node() Node {
	return v.node
}

// Parent returns the view this view was read through, or nil for a root.
func (v *View) Parent() *View {
	return v.parent
}

// Changes returns the view's notification bus.
func (v *View) Changes() *notify.Bus[notify.Void] {
	return v.bus
}

// Meta returns a fresh snapshot of the node's bookkeeping.
func (v *View) Meta() MetaState {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	return v.node.meta().snapshotMeta()
}

// Get reads key following the interception policy described in the
// package documentation.
func (v *View) Get(key string) Result[any] {
	if v.tree.pending != nil {
		if p := v.tree.pending(key); p != nil {
			return Suspend[any](p)
		}
	}
	switch key {
	case MetaKey:
		return Ready[any](v.Meta())
	case ChangesKey:
		return Ready[any](v.bus)
	}
	return Ready(v.Peek(key))
}

// Peek reads key without consulting the pending predicate or the reserved
// keys. Nested nodes come back as child views.
func (v *View) Peek(key string) any {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()

	raw := v.lookupLocked(key)
	if n, ok := raw.(Node); ok {
		return v.childLocked(n)
	}
	return raw
}

// Lookup follows a dotted path ("tasks.0.status") through Get, stopping at
// the first suspended read. A path through a scalar or missing field reads
// as nil.
func (v *View) Lookup(path string) Result[any] {
	cur := v
	parts := strings.Split(path, ".")
	for i, part := range parts {
		r := cur.Get(part)
		if r.IsPending() {
			return r
		}
		val, _ := r.Value()
		if i == len(parts)-1 {
			return r
		}
		next, ok := val.(*View)
		if !ok {
			return Ready[any](nil)
		}
		cur = next
	}
	return Ready[any](nil)
}

// Child returns the view at key, or nil when key does not hold a node.
func (v *View) Child(key string) *View {
	child, _ := v.Peek(key).(*View)
	return child
}

func (v *View) lookupLocked(key string) any {
	switch n := v.node.(type) {
	case *Object:
		return n.fields[key]
	case *List:
		if key == LengthKey {
			return ir.IRInt(len(n.items))
		}
		i, ok := parseIndex(key)
		if !ok || i >= len(n.items) {
			return nil
		}
		return n.items[i]
	}
	return nil
}

// Len returns the number of fields of an object or items of a list.
func (v *View) Len() int {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	switch n := v.node.(type) {
	case *Object:
		return len(n.fields)
	case *List:
		return len(n.items)
	}
	return 0
}

// Keys returns object field names in sorted order, or list indices.
func (v *View) Keys() []string {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	switch n := v.node.(type) {
	case *Object:
		keys := make([]string, 0, len(n.fields))
		for k := range n.fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return keys
	case *List:
		keys := make([]string, len(n.items))
		for i := range n.items {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return nil
}

// Snapshot returns a deep ir copy of the node.
func (v *View) Snapshot() ir.IRValue {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	return snapshot(v.node)
}

// Set assigns value to key. For lists, key is an index; assigning at index
// len appends. value may be an ir value, a Go scalar, a Node or a *View
// (whose node is stored by identity). A node that already contains the
// target is rejected with ErrCycle.
func (v *View) Set(key string, value any) error {
	stored, err := normalize(value)
	if err != nil {
		return err
	}
	if err := v.write(func() error { return v.setLocked(key, stored) }); err != nil {
		return err
	}
	return nil
}

func (v *View) setLocked(key string, stored any) error {
	if err := checkAcyclic(v.node, stored); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	switch n := v.node.(type) {
	case *Object:
		if key == MetaKey || key == ChangesKey {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
		}
		old := n.fields[key]
		n.fields[key] = stored
		v.forgetLocked(old)
	case *List:
		i, ok := parseIndex(key)
		if !ok {
			return fmt.Errorf("%w: %q is not a list index", ErrInvalidKey, key)
		}
		switch {
		case i < len(n.items):
			old := n.items[i]
			n.items[i] = stored
			v.forgetLocked(old)
		case i == len(n.items):
			n.items = append(n.items, stored)
		default:
			return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(n.items))
		}
	}
	return nil
}

// Assign sets several object fields as one write: listeners are notified
// once for the whole patch.
func (v *View) Assign(patch ir.IRObject) error {
	stored := make(map[string]any, len(patch))
	for k, val := range patch {
		s, err := normalize(val)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		stored[k] = s
	}
	return v.write(func() error {
		obj, ok := v.node.(*Object)
		if !ok {
			return fmt.Errorf("%w: assign on %T", ErrWrongKind, v.node)
		}
		for k, s := range stored {
			if err := checkAcyclic(v.node, s); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
		}
		for k, s := range stored {
			old := obj.fields[k]
			obj.fields[k] = s
			v.forgetLocked(old)
		}
		return nil
	})
}

// Append adds values to the end of a list as one write.
func (v *View) Append(values ...any) error {
	stored := make([]any, len(values))
	for i, val := range values {
		s, err := normalize(val)
		if err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		stored[i] = s
	}
	return v.write(func() error {
		list, ok := v.node.(*List)
		if !ok {
			return fmt.Errorf("%w: append on %T", ErrWrongKind, v.node)
		}
		for i, s := range stored {
			if err := checkAcyclic(v.node, s); err != nil {
				return fmt.Errorf("value %d: %w", i, err)
			}
		}
		list.items = append(list.items, stored...)
		return nil
	})
}

// Delete removes an object field or a list item. Deleting a missing object
// field is a successful no-op write.
func (v *View) Delete(key string) error {
	return v.write(func() error {
		switch n := v.node.(type) {
		case *Object:
			old := n.fields[key]
			delete(n.fields, key)
			v.forgetLocked(old)
		case *List:
			i, ok := parseIndex(key)
			if !ok || i >= len(n.items) {
				return fmt.Errorf("%w: %q (len %d)", ErrIndexOutOfRange, key, len(n.items))
			}
			old := n.items[i]
			n.items = slices.Delete(n.items, i, i+1)
			v.forgetLocked(old)
		}
		return nil
	})
}

// Freeze makes the node reject all further writes.
func (v *View) Freeze() {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	v.node.meta().frozen = true
}

// SetStatus records the node's liveness status and notifies listeners so
// that loading and error states can be rendered. It does not mark the
// node dirty.
func (v *View) SetStatus(status Status, err error) {
	v.RecordStatus(status, err)
	v.notify()
}

// RecordStatus stores the node's status without notifying. Callers that
// must order status changes under their own lock record first and call
// Notify once that lock is released.
func (v *View) RecordStatus(status Status, err error) {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	m := v.node.meta()
	m.status = status
	m.err = err
}

// Notify fires the listeners a write to this view would fire.
func (v *View) Notify() {
	v.notify()
}

// MarkClean clears the dirty flag, typically after the backend confirmed
// the node's contents.
func (v *View) MarkClean() {
	v.tree.mu.Lock()
	defer v.tree.mu.Unlock()
	v.node.meta().dirty = false
}

// write runs mutate under the tree lock and, when it succeeds, stamps the
// node and notifies. Frozen nodes reject the write before mutate runs.
func (v *View) write(mutate func() error) error {
	v.tree.mu.Lock()
	m := v.node.meta()
	if m.frozen {
		v.tree.mu.Unlock()
		return ErrFrozen
	}
	if err := mutate(); err != nil {
		v.tree.mu.Unlock()
		return err
	}
	m.dirty = true
	m.updated = v.tree.now()
	v.tree.mu.Unlock()

	v.notify()
	return nil
}

// notify fires this view's bus, then each ancestor's bus, then the global
// callback.
func (v *View) notify() {
	for cur := v; cur != nil; cur = cur.parent {
		cur.bus.Notify(notify.Void{})
	}
	if v.tree.onChange != nil {
		v.tree.onChange()
	}
}
