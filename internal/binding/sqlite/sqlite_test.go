package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
	"github.com/roach88/omnistate/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.EnsureTable(ctx, store.TableSpec{
		Name: "board",
		Columns: []store.Column{
			{Name: "name", Type: store.TypeText},
		},
	}))
	require.NoError(t, s.EnsureTable(ctx, store.TableSpec{
		Name: "tasks",
		Columns: []store.Column{
			{Name: "title", Type: store.TypeText},
			{Name: "status", Type: store.TypeText},
			{Name: "priority", Type: store.TypeInteger},
			{Name: "board_id", Type: store.TypeText},
			{Name: "labels", Type: store.TypeJSON},
		},
	}))
	return s
}

func seeded(t *testing.T, opts ...Option) *Adapter {
	t.Helper()
	a := New(openStore(t), opts...)
	ctx := context.Background()
	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Create, Collection: "board",
		Data: ir.IRObject{"id": ir.IRString("b1"), "name": ir.IRString("Main")},
	}))
	for _, row := range []ir.IRObject{
		{"id": ir.IRString("1"), "title": ir.IRString("Fix Bugs"), "status": ir.IRString("todo"), "priority": ir.IRInt(2), "board_id": ir.IRString("b1")},
		{"id": ir.IRString("2"), "title": ir.IRString("Write Tests"), "status": ir.IRString("todo"), "priority": ir.IRInt(1)},
		{"id": ir.IRString("3"), "title": ir.IRString("Ship"), "status": ir.IRString("done"), "priority": ir.IRInt(3)},
	} {
		require.NoError(t, a.Write(ctx, queryir.Mutation{Type: queryir.Create, Collection: "tasks", Data: row}))
	}
	return a
}

func read(t *testing.T, a *Adapter, o queryir.Options) ir.IRArray {
	t.Helper()
	d, err := a.BuildQuery("tasks", o)
	require.NoError(t, err)
	rows, err := a.Read(context.Background(), d)
	require.NoError(t, err)
	return rows
}

func ids(rows ir.IRArray) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.(ir.IRObject)["id"].(ir.IRString))
	}
	return out
}

func TestBuildQuery_CompilesSQL(t *testing.T) {
	a := New(nil)
	d, err := a.BuildQuery("tasks", queryir.Options{}.
		WithWhere(queryir.Eq("status", ir.IRString("todo"))).
		WithLimit(5))
	require.NoError(t, err)
	q := d.(Query)
	assert.Equal(t, "SELECT * FROM tasks WHERE status = ? LIMIT ?", q.SQL)
	assert.Equal(t, []any{"todo", int64(5)}, q.Params)

	_, err = a.BuildQuery("tasks", queryir.Options{}.WithWhere(queryir.Eq("status", ir.IRNull{})))
	require.Error(t, err)
}

func TestRead_Queries(t *testing.T) {
	a := seeded(t)

	rows := read(t, a, queryir.Options{}.
		WithWhere(queryir.Eq("status", ir.IRString("todo"))).
		WithOrderBy(queryir.By("priority", queryir.Asc)))
	assert.Equal(t, []string{"2", "1"}, ids(rows))

	rows = read(t, a, queryir.Options{}.WithPK(ir.IRString("3")))
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRInt(3), rows[0].(ir.IRObject)["priority"])
	assert.Equal(t, ir.IRNull{}, rows[0].(ir.IRObject)["labels"])

	rows = read(t, a, queryir.Options{}.WithOrderBy(queryir.By("priority", queryir.Desc)).WithOffset(1))
	assert.Equal(t, []string{"1", "2"}, ids(rows))
}

func TestRead_Include(t *testing.T) {
	a := seeded(t)
	rows := read(t, a, queryir.Options{}.
		WithInclude("board").
		WithOrderBy(queryir.By("id", queryir.Asc)))

	require.Len(t, rows, 3)
	assert.Equal(t, ir.IRObject{"id": ir.IRString("b1"), "name": ir.IRString("Main")},
		rows[0].(ir.IRObject)["board"])
	assert.Equal(t, ir.IRNull{}, rows[1].(ir.IRObject)["board"])
}

func TestWrite(t *testing.T) {
	a := seeded(t, WithIDs(binding.NewFixedGenerator("gen-1")))
	ctx := context.Background()

	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Create, Collection: "tasks",
		Data: ir.IRObject{"title": ir.IRString("New"), "labels": ir.IRArray{ir.IRString("x")}},
	}))
	rows := read(t, a, queryir.Options{}.WithPK(ir.IRString("gen-1")))
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRArray{ir.IRString("x")}, rows[0].(ir.IRObject)["labels"])

	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Update, Collection: "tasks", ID: ir.IRString("1"),
		Data: ir.IRObject{"status": ir.IRString("done")},
	}))
	rows = read(t, a, queryir.Options{}.WithWhere(queryir.Eq("status", ir.IRString("done"))).
		WithOrderBy(queryir.By("id", queryir.Asc)))
	assert.Equal(t, []string{"1", "3"}, ids(rows))

	require.NoError(t, a.Write(ctx, queryir.Mutation{Type: queryir.Delete, Collection: "tasks", ID: ir.IRString("1")}))
	err := a.Write(ctx, queryir.Mutation{Type: queryir.Delete, Collection: "tasks", ID: ir.IRString("1")})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = a.Write(ctx, queryir.Mutation{
		Type: queryir.Create, Collection: "tasks", ID: ir.IRString("2"),
		Data: ir.IRObject{"title": ir.IRString("dup")},
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

type snapshots struct {
	mu   sync.Mutex
	rows []ir.IRArray
}

func (s *snapshots) push(rows ir.IRArray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows)
}

func (s *snapshots) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func TestSubscribe_Polls(t *testing.T) {
	a := seeded(t, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()
	d, err := a.BuildQuery("tasks", queryir.Options{}.WithWhere(queryir.Eq("status", ir.IRString("todo"))))
	require.NoError(t, err)

	var got snapshots
	unsub, err := a.Subscribe(ctx, d, got.push)
	require.NoError(t, err)
	require.Equal(t, 1, got.count())

	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Update, Collection: "tasks", ID: ir.IRString("3"),
		Data: ir.IRObject{"status": ir.IRString("todo")},
	}))
	assert.Eventually(t, func() bool { return got.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	// Unchanged rows are not redelivered.
	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Update, Collection: "tasks", ID: ir.IRString("3"),
		Data: ir.IRObject{"status": ir.IRString("todo")},
	}))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, got.count())

	unsub()
	unsub()
	require.NoError(t, a.Write(ctx, queryir.Mutation{
		Type: queryir.Delete, Collection: "tasks", ID: ir.IRString("1"),
	}))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, got.count())
}

func TestBind_EndToEnd(t *testing.T) {
	a := seeded(t)
	root := state.Define(nil)
	tasks := binding.Bind(a, "tasks", binding.WithCache(collection.NewCache(root)))

	rows, err := tasks.OrderBy(queryir.By("priority", queryir.Asc)).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1", "3"}, ids(rows))

	list := root.Child("tasks")
	require.NotNil(t, list)
	assert.Equal(t, 3, list.Len())
	title := list.Lookup("0.title")
	v, ok := title.Value()
	require.True(t, ok)
	assert.Equal(t, ir.IRString("Write Tests"), v)
}
