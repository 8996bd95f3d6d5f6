// Package graphql is an adapter that builds GraphQL documents and hands
// them to a caller-supplied Executor. Transport (HTTP, websockets, auth)
// is the executor's concern.
//
// A query for collection tasks reads
//
//	query { tasks(id: "4", where: {status: "todo"}, orderBy: {priority: "desc"}, limit: 10, offset: 5) { id board { id } } }
//
// and mutations are named insert_<collection>, update_<collection> and
// delete_<collection>. Values are written as GraphQL literals; identifiers
// must pass queryir.ValidIdentifier.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/queryir"
)

// ErrDescriptor is returned for descriptors built by another adapter.
var ErrDescriptor = errors.New("graphql: foreign descriptor")

// Request is the descriptor built by Client.BuildQuery.
type Request struct {
	Collection string
	Document   string
	Include    []string
}

// Executor runs a GraphQL document and returns the response's data object.
type Executor interface {
	Execute(ctx context.Context, document string) (ir.IRObject, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, document string) (ir.IRObject, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, document string) (ir.IRObject, error) {
	return f(ctx, document)
}

// Client implements binding.Adapter over an Executor.
//
// Thread-safety: safe for concurrent use when the executor is.
type Client struct {
	exec    Executor
	pk      string
	fields  map[string][]string
	changes *notify.Bus[string]
}

var _ binding.Adapter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithPrimaryKey names the row identity field. Default "id".
func WithPrimaryKey(pk string) Option {
	return func(c *Client) {
		c.pk = pk
	}
}

// WithFields selects fields of collection besides the primary key.
func WithFields(collection string, fields ...string) Option {
	return func(c *Client) {
		c.fields[collection] = append(c.fields[collection], fields...)
	}
}

// New creates a client.
func New(exec Executor, opts ...Option) *Client {
	c := &Client{
		exec:    exec,
		pk:      "id",
		fields:  make(map[string][]string),
		changes: notify.New[string](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildQuery renders opts as a query document.
func (c *Client) BuildQuery(collection string, opts queryir.Options) (binding.Descriptor, error) {
	if !queryir.ValidIdentifier(collection) {
		return nil, fmt.Errorf("collection %q is not a valid identifier", collection)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	selection, err := c.selection(collection)
	if err != nil {
		return nil, err
	}

	var args []string
	if opts.PK != nil {
		args = append(args, c.pk+": "+literal(opts.PK))
	}
	if len(opts.Where) > 0 {
		parts := make([]string, len(opts.Where))
		for i, cond := range opts.Where {
			parts[i] = cond.Field + ": " + literal(cond.Value)
		}
		args = append(args, "where: {"+strings.Join(parts, ", ")+"}")
	}
	if len(opts.OrderBy) > 0 {
		parts := make([]string, len(opts.OrderBy))
		for i, o := range opts.OrderBy {
			parts[i] = o.Field + ": " + strconv.Quote(string(o.Direction))
		}
		args = append(args, "orderBy: {"+strings.Join(parts, ", ")+"}")
	}
	if opts.Limit != nil {
		args = append(args, "limit: "+strconv.Itoa(*opts.Limit))
	}
	if opts.Offset != nil {
		args = append(args, "offset: "+strconv.Itoa(*opts.Offset))
	}

	var b strings.Builder
	b.WriteString("query { " + collection)
	if len(args) > 0 {
		b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	b.WriteString(" { " + selection)
	for _, rel := range opts.Include {
		sel, err := c.selection(rel)
		if err != nil {
			return nil, err
		}
		b.WriteString(" " + rel + " { " + sel + " }")
	}
	b.WriteString(" } }")

	return Request{
		Collection: collection,
		Document:   b.String(),
		Include:    slices.Clone(opts.Include),
	}, nil
}

// BuildMutation renders m as a mutation document.
func (c *Client) BuildMutation(m queryir.Mutation) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	var field string
	var args []string
	switch m.Type {
	case queryir.Create:
		data := m.Data
		if m.ID != nil {
			data = data.Clone()
			data[c.pk] = m.ID
		}
		field = "insert_" + m.Collection
		args = append(args, "data: "+literal(data))
	case queryir.Update:
		data := m.Data.Clone()
		delete(data, c.pk)
		if len(data) == 0 {
			return "", fmt.Errorf("update of %s changes no fields", m.Collection)
		}
		field = "update_" + m.Collection
		args = append(args, c.pk+": "+literal(m.ID), "data: "+literal(data))
	default: // queryir.Delete; Validate rejected anything else
		field = "delete_" + m.Collection
		args = append(args, c.pk+": "+literal(m.ID))
	}
	return fmt.Sprintf("mutation { %s(%s) { %s } }", field, strings.Join(args, ", "), c.pk), nil
}

// Read executes the query and returns data[collection]. A single object
// reads as one row and null as none.
func (c *Client) Read(ctx context.Context, d binding.Descriptor) (ir.IRArray, error) {
	req, ok := d.(Request)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}
	data, err := c.exec.Execute(ctx, req.Document)
	if err != nil {
		return nil, fmt.Errorf("graphql %s: %w", req.Collection, err)
	}

	switch v := data[req.Collection].(type) {
	case nil, ir.IRNull:
		return ir.IRArray{}, nil
	case ir.IRObject:
		return ir.IRArray{v}, nil
	case ir.IRArray:
		for i, r := range v {
			if _, ok := r.(ir.IRObject); !ok {
				return nil, fmt.Errorf("graphql %s: row %d is %T, not an object", req.Collection, i, r)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("graphql %s: data is %T, not a list", req.Collection, v)
	}
}

// Write executes the mutation and notifies subscribers of the collection.
func (c *Client) Write(ctx context.Context, m queryir.Mutation) error {
	doc, err := c.BuildMutation(m)
	if err != nil {
		return err
	}
	if _, err := c.exec.Execute(ctx, doc); err != nil {
		return fmt.Errorf("graphql %s %s: %w", m.Type, m.Collection, err)
	}
	slog.Debug("graphql mutation applied", "collection", m.Collection, "type", m.Type)
	c.changes.Notify(m.Collection)
	return nil
}

// Subscribe delivers the current rows of d before returning, then re-reads
// after every write this client makes to the collection or an included
// relation. Server-pushed subscriptions are not used.
func (c *Client) Subscribe(ctx context.Context, d binding.Descriptor, onRows func(ir.IRArray)) (notify.Unsubscribe, error) {
	req, ok := d.(Request)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}
	rows, err := c.Read(ctx, req)
	if err != nil {
		return nil, err
	}
	feed := binding.NewFeed(onRows)
	feed.Push(rows)

	watched := append([]string{req.Collection}, req.Include...)
	unsub := c.changes.Subscribe(func(name string) {
		if !slices.Contains(watched, name) || ctx.Err() != nil {
			return
		}
		rows, err := c.Read(ctx, req)
		if err != nil {
			slog.Warn("graphql refresh failed", "collection", req.Collection, "error", err)
			return
		}
		feed.Push(rows)
	})

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsub()
			close(stop)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return cancel, nil
}

func (c *Client) selection(collection string) (string, error) {
	out := []string{c.pk}
	for _, f := range c.fields[collection] {
		if !queryir.ValidIdentifier(f) {
			return "", fmt.Errorf("field %q of %s is not a valid identifier", f, collection)
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return strings.Join(out, " "), nil
}

// literal writes v as a GraphQL input value. Object keys are sorted and
// strings use JSON escaping, which GraphQL string syntax accepts.
func literal(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		b, _ := json.Marshal(string(val))
		return string(b)
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRBool:
		return strconv.FormatBool(bool(val))
	case ir.IRArray:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ir.IRObject:
		keys := val.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + literal(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "null"
	}
}
