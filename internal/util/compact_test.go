package util

import "testing"

func TestCompactSQL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT *\n  FROM users\n  WHERE id = 1", "SELECT * FROM users WHERE id = 1"},
		{"  \t SELECT\t\t1  ", "SELECT 1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := CompactSQL(c.in); got != c.want {
			t.Fatalf("CompactSQL(%q)=%q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd..." {
		t.Fatalf("Truncate=%q, want %q", got, "abcd...")
	}
	if got := Truncate("abc", 4); got != "abc" {
		t.Fatalf("Truncate=%q, want %q", got, "abc")
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("Truncate=%q, want empty", got)
	}
}
