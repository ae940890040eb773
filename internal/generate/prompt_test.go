package generate

import (
	"strings"
	"testing"

	"sqlpilot/internal/db"
	"sqlpilot/internal/schema"
)

func promptSnapshot() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{
			Name: "products",
			Columns: []schema.Column{
				{Name: "product_id", Type: "integer"},
				{Name: "name", Type: "varchar"},
			},
			PrimaryKey: []string{"product_id"},
		},
	}}
}

func TestBuildPromptIncludesSchemaAndQuestion(t *testing.T) {
	prompt := BuildPrompt("How many products are there?", promptSnapshot(), "", db.DialectPostgres)
	for _, want := range []string{
		"Table: products",
		"product_id (integer)",
		"How many products are there?",
		"PostgreSQL SYNTAX REMINDERS",
		"Never use DROP, DELETE, ALTER, TRUNCATE",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "CORRECTION:") {
		t.Fatal("first attempt prompt must not carry a correction block")
	}
}

func TestBuildPromptCarriesDirectiveOnRetry(t *testing.T) {
	prompt := BuildPrompt("q", promptSnapshot(), "DO NOT use column 'id' again.", db.DialectPostgres)
	if !strings.Contains(prompt, "CORRECTION:\nDO NOT use column 'id' again.") {
		t.Fatalf("directive missing from prompt:\n%s", prompt)
	}
}

func TestBuildPromptMySQLReminders(t *testing.T) {
	prompt := BuildPrompt("q", promptSnapshot(), "", db.DialectMySQL)
	if !strings.Contains(prompt, "MySQL SYNTAX REMINDERS") {
		t.Fatalf("expected mysql reminders:\n%s", prompt)
	}
	if strings.Contains(prompt, "ILIKE") {
		t.Fatal("postgres reminders leaked into mysql prompt")
	}
}

func TestExtractSQLStripsFences(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```": "SELECT 1",
		"```\nSELECT 1\n```":    "SELECT 1",
		"  SELECT 1  ":          "SELECT 1",
		"SELECT 1":              "SELECT 1",
	}
	for in, want := range cases {
		if got := ExtractSQL(in); got != want {
			t.Fatalf("ExtractSQL(%q) = %q, want %q", in, got, want)
		}
	}
}
