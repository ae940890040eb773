package runner

import (
	"testing"

	"sqlpilot/internal/schema"
)

func repairSnapshot() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{Name: "users", Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "username", Type: "varchar(64)"},
			{Name: "created_at", Type: "timestamp"},
		}},
		{Name: "orders", Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "user_id", Type: "int"},
			{Name: "total", Type: "decimal(10,2)"},
		}},
	}}
}

func TestRepairColumnsQualifiedReference(t *testing.T) {
	got := RepairColumns("SELECT u.usernme FROM users u", repairSnapshot())
	if got != "SELECT u.username FROM users u" {
		t.Fatalf("qualified repair failed: %q", got)
	}
}

func TestRepairColumnsBareReference(t *testing.T) {
	got := RepairColumns("SELECT usernme FROM users", repairSnapshot())
	if got != "SELECT username FROM users" {
		t.Fatalf("bare repair failed: %q", got)
	}
}

func TestRepairColumnsLeavesValidSQLAlone(t *testing.T) {
	in := "SELECT username, created_at FROM users"
	if got := RepairColumns(in, repairSnapshot()); got != in {
		t.Fatalf("valid SQL rewritten: %q", got)
	}
}

func TestRepairColumnsSkipsKeywordsAndTables(t *testing.T) {
	in := "SELECT COUNT(*) FROM orders GROUP BY user_id"
	if got := RepairColumns(in, repairSnapshot()); got != in {
		t.Fatalf("keywords or table names rewritten: %q", got)
	}
}

func TestRepairColumnsIgnoresDistantNames(t *testing.T) {
	in := "SELECT zzz_qqq FROM users"
	if got := RepairColumns(in, repairSnapshot()); got != in {
		t.Fatalf("dissimilar word rewritten: %q", got)
	}
}

func TestRepairColumnsNilSnapshot(t *testing.T) {
	in := "SELECT usernme FROM users"
	if got := RepairColumns(in, nil); got != in {
		t.Fatalf("nil snapshot must be a no-op, got %q", got)
	}
}
