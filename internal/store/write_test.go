package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/omnistate/internal/ir"
)

func insertTask(t *testing.T, s *Store, id, title string) int64 {
	t.Helper()
	seq, err := s.Apply(context.Background(),
		Change{Collection: "tasks", RowID: id, Op: "create"},
		"INSERT INTO tasks (id, title, priority, done, tags) VALUES (?, ?, ?, ?, ?)",
		id, title, int64(1), false, `["a"]`,
	)
	if err != nil {
		t.Fatalf("Apply(create %s) failed: %v", id, err)
	}
	return seq
}

func TestApply_RoundTripsValues(t *testing.T) {
	s := createTasksStore(t)
	insertTask(t, s, "1", "Ship")

	rows, err := s.QueryRows(context.Background(), "SELECT * FROM tasks")
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	want := ir.IRArray{ir.IRObject{
		"id":       ir.IRString("1"),
		"title":    ir.IRString("Ship"),
		"priority": ir.IRInt(1),
		"done":     ir.IRBool(false),
		"tags":     ir.IRArray{ir.IRString("a")},
	}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("QueryRows() = %#v, want %#v", rows, want)
	}
}

func TestQueryRows_EmptyIsNotNil(t *testing.T) {
	s := createTasksStore(t)
	rows, err := s.QueryRows(context.Background(), "SELECT * FROM tasks WHERE id = ?", "nope")
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("QueryRows() = %#v, want empty non-nil array", rows)
	}
}

func TestQueryRows_NullColumns(t *testing.T) {
	s := createTasksStore(t)
	_, err := s.Apply(context.Background(),
		Change{Collection: "tasks", RowID: "1", Op: "create"},
		"INSERT INTO tasks (id, title) VALUES (?, ?)", "1", "Bare")
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	rows, err := s.QueryRows(context.Background(), "SELECT priority, tags FROM tasks")
	if err != nil {
		t.Fatalf("QueryRows() failed: %v", err)
	}
	want := ir.IRArray{ir.IRObject{"priority": ir.IRNull{}, "tags": ir.IRNull{}}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("QueryRows() = %#v, want %#v", rows, want)
	}
}

func TestApply_LogsChanges(t *testing.T) {
	s := createTasksStore(t)
	ctx := context.Background()

	first := insertTask(t, s, "1", "A")
	second := insertTask(t, s, "2", "B")
	if second <= first {
		t.Errorf("seq not increasing: %d then %d", first, second)
	}

	_, err := s.Apply(ctx, Change{Collection: "tasks", RowID: "1", Op: "update"},
		"UPDATE tasks SET title = ? WHERE id = ?", "A2", "1")
	if err != nil {
		t.Fatalf("Apply(update) failed: %v", err)
	}

	latest, err := s.LatestChange(ctx, "tasks")
	if err != nil {
		t.Fatalf("LatestChange() failed: %v", err)
	}
	changes, err := s.ChangesSince(ctx, "tasks", first)
	if err != nil {
		t.Fatalf("ChangesSince() failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("ChangesSince() returned %d changes, want 2", len(changes))
	}
	if changes[1].Seq != latest || changes[1].Op != "update" || changes[1].RowID != "1" {
		t.Errorf("last change = %+v, want update of 1 at seq %d", changes[1], latest)
	}

	none, err := s.LatestChange(ctx, "boards")
	if err != nil {
		t.Fatalf("LatestChange(boards) failed: %v", err)
	}
	if none != 0 {
		t.Errorf("LatestChange(boards) = %d, want 0", none)
	}
}

func TestApply_NotFound(t *testing.T) {
	s := createTasksStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, Change{Collection: "tasks", RowID: "9", Op: "delete"},
		"DELETE FROM tasks WHERE id = ?", "9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply(delete missing) = %v, want ErrNotFound", err)
	}

	latest, _ := s.LatestChange(ctx, "tasks")
	if latest != 0 {
		t.Errorf("failed mutation was logged at seq %d", latest)
	}
}

func TestApply_Duplicate(t *testing.T) {
	s := createTasksStore(t)
	insertTask(t, s, "1", "A")

	_, err := s.Apply(context.Background(), Change{Collection: "tasks", RowID: "1", Op: "create"},
		"INSERT INTO tasks (id, title) VALUES (?, ?)", "1", "again")
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Apply(duplicate) = %v, want ErrDuplicate", err)
	}
}
