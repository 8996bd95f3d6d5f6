package store

import (
	"context"
	"strings"
	"testing"
)

func TestTableSpec_CreateSQL(t *testing.T) {
	tests := []struct {
		name string
		spec TableSpec
		want string
	}{
		{
			name: "declared pk",
			spec: tasksTable,
			want: "CREATE TABLE IF NOT EXISTS tasks (id TEXT PRIMARY KEY, title TEXT NOT NULL, " +
				"priority INTEGER, done BOOLEAN, tags JSON)",
		},
		{
			name: "implicit pk",
			spec: TableSpec{Name: "tags", Columns: []Column{{Name: "name", Type: TypeText}}},
			want: "CREATE TABLE IF NOT EXISTS tags (id TEXT PRIMARY KEY, name TEXT)",
		},
		{
			name: "custom pk",
			spec: TableSpec{Name: "users", PrimaryKey: "slug"},
			want: "CREATE TABLE IF NOT EXISTS users (slug TEXT PRIMARY KEY)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.CreateSQL()
			if err != nil {
				t.Fatalf("CreateSQL() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("CreateSQL() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestTableSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    TableSpec
		wantErr string
	}{
		{"bad name", TableSpec{Name: "tasks; DROP"}, "invalid name"},
		{"reserved", TableSpec{Name: "omnistate_changes"}, "reserved name"},
		{"bad pk", TableSpec{Name: "t", PrimaryKey: "a-b"}, "invalid primary key"},
		{"bad column", TableSpec{Name: "t", Columns: []Column{{Name: "1x", Type: TypeText}}}, "invalid column"},
		{"duplicate", TableSpec{Name: "t", Columns: []Column{
			{Name: "a", Type: TypeText}, {Name: "a", Type: TypeText},
		}}, "duplicate column"},
		{"unknown type", TableSpec{Name: "t", Columns: []Column{{Name: "a", Type: "REAL"}}}, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureTable_Idempotent(t *testing.T) {
	s := createTasksStore(t)
	if err := s.EnsureTable(context.Background(), tasksTable); err != nil {
		t.Errorf("second EnsureTable() failed: %v", err)
	}
}
