package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tasksTable is the table most tests work against.
var tasksTable = TableSpec{
	Name:       "tasks",
	PrimaryKey: "id",
	Columns: []Column{
		{Name: "id", Type: TypeText},
		{Name: "title", Type: TypeText, NotNull: true},
		{Name: "priority", Type: TypeInteger},
		{Name: "done", Type: TypeBoolean},
		{Name: "tags", Type: TypeJSON},
	},
}

// createTasksStore creates a store with the tasks table.
func createTasksStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.EnsureTable(context.Background(), tasksTable); err != nil {
		t.Fatalf("EnsureTable() failed: %v", err)
	}
	return s
}
