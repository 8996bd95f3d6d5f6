package binding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
)

type fakeQuery struct {
	collection string
	opts       queryir.Options
}

type fakeAdapter struct {
	mu        sync.Mutex
	rows      ir.IRArray
	buildErr  error
	readErr   error
	block     bool
	reads     atomic.Int32
	mutations []queryir.Mutation
}

func (f *fakeAdapter) BuildQuery(collection string, opts queryir.Options) (Descriptor, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return fakeQuery{collection: collection, opts: opts}, nil
}

func (f *fakeAdapter) Read(ctx context.Context, d Descriptor) (ir.IRArray, error) {
	f.reads.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.readErr != nil {
		return nil, f.readErr
	}
	q := d.(fakeQuery)
	f.mu.Lock()
	defer f.mu.Unlock()
	return queryir.Eval(ir.Clone(f.rows).(ir.IRArray), q.opts, "id"), nil
}

func (f *fakeAdapter) Write(_ context.Context, m queryir.Mutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, m)
	return nil
}

func (f *fakeAdapter) Subscribe(context.Context, Descriptor, func(ir.IRArray)) (notify.Unsubscribe, error) {
	return func() {}, nil
}

func tasks() ir.IRArray {
	return ir.IRArray{
		ir.IRObject{"id": ir.IRString("1"), "status": ir.IRString("todo")},
		ir.IRObject{"id": ir.IRString("2"), "status": ir.IRString("done")},
	}
}

func TestBind_ResolvesAndMerges(t *testing.T) {
	root := state.Define(nil)
	a := &fakeAdapter{rows: tasks()}
	b := Bind(a, "tasks", WithCache(collection.NewCache(root)))

	r := b.Where(queryir.Eq("status", ir.IRString("todo"))).Rows()
	require.True(t, r.IsPending(), "first dereference suspends on the read")

	rows, err := b.Where(queryir.Eq("status", ir.IRString("todo"))).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(1), a.reads.Load())

	list := root.Child("tasks")
	require.NotNil(t, list)
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, state.StatusReady, list.Meta().Status)
}

func TestBind_BuildQueryError(t *testing.T) {
	a := &fakeAdapter{buildErr: errors.New("unsupported option")}
	_, err := Bind(a, "tasks").Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build query tasks")
	assert.Equal(t, int32(0), a.reads.Load())
}

func TestBind_ReadErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	a := &fakeAdapter{readErr: boom}
	_, err := Bind(a, "tasks").Fetch(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read tasks")
}

func TestBind_ResolveTimeout(t *testing.T) {
	a := &fakeAdapter{block: true}
	_, err := Bind(a, "tasks", WithResolveTimeout(10*time.Millisecond)).Fetch(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBind_ParentContextCancelsReads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAdapter{block: true}
	b := Bind(a, "tasks", WithContext(ctx), WithResolveTimeout(0))

	r := b.Rows()
	require.True(t, r.IsPending())
	cancel()

	_, err := r.Pending().Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestBind_WritesGoToAdapter(t *testing.T) {
	a := &fakeAdapter{}
	b := Bind(a, "tasks", WithPrimaryKey("slug"))
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, ir.IRObject{"slug": ir.IRString("a"), "title": ir.IRString("A")}))
	require.NoError(t, b.Update(ctx, ir.IRString("a"), ir.IRObject{"title": ir.IRString("B")}))
	require.NoError(t, b.Delete(ctx, ir.IRString("a")))

	require.Len(t, a.mutations, 3)
	assert.Equal(t, queryir.Create, a.mutations[0].Type)
	assert.Equal(t, ir.IRString("a"), a.mutations[0].ID)
	assert.Equal(t, queryir.Update, a.mutations[1].Type)
	assert.Equal(t, queryir.Delete, a.mutations[2].Type)
	assert.Equal(t, "slug", b.PrimaryKey())
}
