package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/roach88/omnistate/internal/app"
	"github.com/roach88/omnistate/internal/binding/memory"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/compiler"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/live"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
	"github.com/roach88/omnistate/internal/testutil"
)

// stepTimeout bounds every query a step waits on.
const stepTimeout = 5 * time.Second

// Harness is the test execution engine.
// It runs scenarios with a logical clock and sequential row ids.
type Harness struct {
	app    *app.App
	clock  *live.Clock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh memory adapter for isolation.
//
// Execution flow:
// 1. Compile the schema
// 2. Seed a memory adapter and assemble the store
// 3. Execute steps, checking each expect clause
// 4. Snapshot the final state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	spec, err := loadSchema(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	pk, err := app.SharedPrimaryKey(spec)
	if err != nil {
		return nil, err
	}

	dbOpts := []memory.Option{
		memory.WithPrimaryKey(pk),
		memory.WithIDs(testutil.NewSequentialIDs("row")),
	}
	for _, c := range spec.Collections {
		dbOpts = append(dbOpts, memory.WithTable(c.Name, c.Seed...))
	}
	db := memory.New(dbOpts...)

	a, err := app.New(spec, db, app.WithResolveTimeout(stepTimeout))
	if err != nil {
		return nil, err
	}
	defer a.Close()

	h := &Harness{
		app:    a,
		clock:  live.NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		h.execute(ctx, i, step, result)
	}

	final, _ := a.State().Snapshot().(ir.IRObject)
	result.State = final

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func loadSchema(s *Scenario) (*compiler.StoreSpec, error) {
	if s.Source != "" {
		return compiler.CompileSource(s.Source, s.Name+".cue")
	}
	data, err := os.ReadFile(s.Schema)
	if err != nil {
		return nil, err
	}
	return compiler.CompileSource(string(data), s.Schema)
}

// execute runs one step, records it in the trace and checks its expect
// clause. Step failures are recorded on result; the scenario continues.
func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) {
	event := TraceEvent{
		Seq:        h.clock.Next(),
		Op:         step.Op,
		Collection: step.Collection,
		Path:       step.Path,
	}

	var err error
	switch step.Op {
	case OpSet:
		err = h.set(step, &event)
	case OpQuery:
		err = h.query(ctx, step, &event)
	case OpAdd, OpUpdate, OpDelete, OpOptimistic:
		err = h.write(ctx, step, &event)
	case OpExpect:
		err = h.expect(step, &event)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	var expectErr *stepMismatch
	switch {
	case errors.As(err, &expectErr):
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, step.Op, expectErr.msg))
	case err != nil:
		event.Error = err.Error()
		if step.Expect == nil || step.Expect.Error == "" {
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", index, step.Op, err))
		} else if !strings.Contains(err.Error(), step.Expect.Error) {
			result.AddError(fmt.Sprintf("steps[%d] %s: error %q does not contain %q",
				index, step.Op, err.Error(), step.Expect.Error))
		}
	case step.Expect != nil && step.Expect.Error != "":
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got success",
			index, step.Op, step.Expect.Error))
	}

	result.AddTrace(event)
	h.logger.Info("step completed",
		"step", index,
		"op", step.Op,
		"seq", event.Seq,
		"error", event.Error,
	)
}

// stepMismatch is an expect clause that did not hold. It fails the
// scenario without being recorded as the step's error.
type stepMismatch struct {
	msg string
}

func (e *stepMismatch) Error() string { return e.msg }

func mismatch(format string, args ...any) error {
	return &stepMismatch{msg: fmt.Sprintf(format, args...)}
}

func (h *Harness) set(step Step, event *TraceEvent) error {
	value, err := convertToIRValue(step.Value)
	if err != nil {
		return err
	}
	event.Args = ir.IRObject{"value": value}

	parent := h.app.State()
	key := step.Path
	if i := strings.LastIndex(step.Path, "."); i >= 0 {
		r := parent.Lookup(step.Path[:i])
		v, _ := r.Value()
		view, ok := v.(*state.View)
		if !ok {
			return fmt.Errorf("path %s does not hold an object or list", step.Path[:i])
		}
		parent, key = view, step.Path[i+1:]
	}
	return parent.Set(key, value)
}

func (h *Harness) builder(step Step) (*collection.Builder, error) {
	b, err := h.app.Collection(step.Collection)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(step.Where))
	for k := range step.Where {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, err := convertToIRValue(step.Where[k])
		if err != nil {
			return nil, fmt.Errorf("where %s: %w", k, err)
		}
		b = b.Where(queryir.Eq(k, v))
	}

	for _, o := range step.OrderBy {
		dir := queryir.Direction(o.Direction)
		if dir == "" {
			dir = queryir.Asc
		}
		b = b.OrderBy(queryir.By(o.Field, dir))
	}
	if step.Limit != nil {
		b = b.Limit(*step.Limit)
	}
	if step.Offset != nil {
		b = b.Offset(*step.Offset)
	}
	for _, rel := range step.Include {
		b = b.Include(rel)
	}
	if step.Get != nil {
		pk, err := convertToIRValue(step.Get)
		if err != nil {
			return nil, fmt.Errorf("get: %w", err)
		}
		b = b.Get(pk)
	}
	return b, nil
}

func (h *Harness) query(ctx context.Context, step Step, event *TraceEvent) error {
	b, err := h.builder(step)
	if err != nil {
		return err
	}
	event.Args = b.Options().IR()

	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	rows, err := b.Fetch(ctx)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = ir.IRArray{}
	}
	event.Result = rows

	if step.Expect != nil && step.Expect.Rows != nil && len(rows) != *step.Expect.Rows {
		return mismatch("expected %d rows, got %d", *step.Expect.Rows, len(rows))
	}
	return nil
}

func (h *Harness) write(ctx context.Context, step Step, event *TraceEvent) error {
	b, err := h.app.Collection(step.Collection)
	if err != nil {
		return err
	}
	data, err := convertArgsToIRObject(step.Data)
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	args := ir.IRObject{}
	if len(data) > 0 {
		args["data"] = data
	}
	var id ir.IRValue
	if step.ID != nil {
		if id, err = convertToIRValue(step.ID); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		args["id"] = id
	}
	event.Args = args

	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	switch step.Op {
	case OpAdd:
		return b.Add(ctx, data)
	case OpUpdate:
		return b.Update(ctx, id, data)
	case OpDelete:
		return b.Delete(ctx, id)
	default:
		return h.app.Optimistic(ctx, step.Collection, id, data)
	}
}

func (h *Harness) expect(step Step, event *TraceEvent) error {
	r := h.app.State().Lookup(step.Path)
	if r.IsPending() {
		return mismatch("path %s is pending", step.Path)
	}
	raw, _ := r.Value()

	var actual ir.IRValue
	var view *state.View
	switch v := raw.(type) {
	case *state.View:
		view = v
		actual = v.Snapshot()
	case ir.IRValue:
		actual = v
	default:
		actual = ir.IRNull{}
	}
	event.Result = actual

	if step.Value != nil {
		want, err := convertToIRValue(step.Value)
		if err != nil {
			return err
		}
		if !ir.Equal(want, actual) {
			return mismatch("path %s: expected %s, got %s", step.Path, render(want), render(actual))
		}
	}
	if step.Expect == nil {
		return nil
	}
	if step.Expect.Rows != nil {
		if view == nil {
			return mismatch("path %s does not hold a list", step.Path)
		}
		if n := view.Len(); n != *step.Expect.Rows {
			return mismatch("path %s: expected %d items, got %d", step.Path, *step.Expect.Rows, n)
		}
	}
	if step.Expect.Status != "" {
		if view == nil {
			return mismatch("path %s does not hold a node", step.Path)
		}
		if got := view.Meta().Status; string(got) != step.Expect.Status {
			return mismatch("path %s: expected status %s, got %s", step.Path, step.Expect.Status, got)
		}
	}
	return nil
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// convertArgsToIRObject converts a map[string]any to ir.IRObject.
// This handles YAML-parsed values and converts them to proper IRValue types.
func convertArgsToIRObject(args map[string]any) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject)
	for key, val := range args {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// YAML null becomes IRNull; non-integral numbers are rejected.
func convertToIRValue(val any) (ir.IRValue, error) {
	switch v := val.(type) {
	case map[string]any:
		return convertArgsToIRObject(v)
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	default:
		return ir.FromAny(val)
	}
}
