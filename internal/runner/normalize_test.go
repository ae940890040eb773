package runner

import (
	"strings"
	"testing"
)

func TestNormalizeSQLStripsCommentsCaseAndWhitespace(t *testing.T) {
	a := "SELECT  id,\n\tname FROM users -- trailing note\nWHERE id > 1"
	b := "/* lead */ select id, name from users where id > 1"
	if NormalizeSQL(a) != NormalizeSQL(b) {
		t.Fatalf("expected equal normal forms:\n%q\n%q", NormalizeSQL(a), NormalizeSQL(b))
	}
}

func TestNormalizeSQLDistinguishesRealChanges(t *testing.T) {
	a := "SELECT id FROM users"
	b := "SELECT id FROM users WHERE id > 1"
	if NormalizeSQL(a) == NormalizeSQL(b) {
		t.Fatalf("different queries must normalize differently")
	}
}

func TestSQLDiffNamesChangedWords(t *testing.T) {
	diff := SQLDiff("SELECT usernme FROM users", "SELECT username FROM users")
	if !strings.Contains(diff, "usernme") || !strings.Contains(diff, "username") {
		t.Fatalf("diff should mention both spellings, got %q", diff)
	}
}

func TestSQLDiffIdenticalQueries(t *testing.T) {
	diff := SQLDiff("SELECT id FROM users", "select  id from users")
	if !strings.Contains(diff, "formatting only") {
		t.Fatalf("expected formatting-only marker, got %q", diff)
	}
}
