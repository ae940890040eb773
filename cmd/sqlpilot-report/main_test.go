package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sqlpilot/internal/report"
)

func writeSessionDir(t *testing.T, root, name string, summary report.Summary) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "question.txt"), []byte(summary.Question+"\n"), 0o644); err != nil {
		t.Fatalf("write question: %v", err)
	}
}

func TestLoadLocalSessionsSkipsIncompleteDirs(t *testing.T) {
	root := t.TempDir()
	writeSessionDir(t, root, "session_0001_a", report.Summary{
		SessionID: "a", Question: "q1", Succeeded: true, Attempts: 1, Timestamp: "2026-08-30T10:00:00Z",
	})
	// No summary.json: must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "session_0002_b"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Stray file at the top level: must be ignored.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sessions, err := loadLocalSessions(root, 1024)
	if err != nil {
		t.Fatalf("loadLocalSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "a" || !sessions[0].Succeeded {
		t.Fatalf("unexpected entry: %+v", sessions[0])
	}
	if sessions[0].Files["question.txt"].Content == "" {
		t.Fatalf("question.txt should be inlined")
	}
}

func TestRollupSplitsSuccessKinds(t *testing.T) {
	sessions := []SessionEntry{
		{Succeeded: true, Attempts: 1},
		{Succeeded: true, Attempts: 3},
		{Succeeded: false, Attempts: 3, Reason: "exhausted", Category: "syntax_error"},
		{Succeeded: false, Attempts: 1, Reason: "non_retryable", Category: "permission_denied"},
	}
	totals := rollup(sessions)
	if totals.Sessions != 4 || totals.Succeeded != 2 || totals.Failed != 2 {
		t.Fatalf("totals wrong: %+v", totals)
	}
	if totals.FirstAttemptSuccess != 1 || totals.CorrectedSuccess != 1 {
		t.Fatalf("success split wrong: %+v", totals)
	}
	if totals.OverallSuccessRate != 0.5 {
		t.Fatalf("rate = %f", totals.OverallSuccessRate)
	}
	if totals.AvgAttempts != 2 {
		t.Fatalf("avg attempts = %f", totals.AvgAttempts)
	}
	if totals.FailureReasons["exhausted"] != 1 || totals.FaultCategories["permission_denied"] != 1 {
		t.Fatalf("failure maps wrong: %+v", totals)
	}
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := parseS3URI("s3://reports/sqlpilot/prod")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bucket != "reports" || prefix != "sqlpilot/prod/" {
		t.Fatalf("bucket=%q prefix=%q", bucket, prefix)
	}

	bucket, prefix, err = parseS3URI("s3://reports")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bucket != "reports" || prefix != "" {
		t.Fatalf("bucket=%q prefix=%q", bucket, prefix)
	}

	if _, _, err := parseS3URI("s3://"); err == nil {
		t.Fatalf("empty bucket must error")
	}
}

func TestWriteManifestRoundTrip(t *testing.T) {
	out := t.TempDir()
	manifest := Manifest{
		GeneratedAt: "2026-08-30T10:00:00Z",
		Source:      ".sessions",
		Totals:      rollup(nil),
		Sessions:    []SessionEntry{},
	}
	if err := writeManifest(out, manifest); err != nil {
		t.Fatalf("writeManifest: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "report.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Manifest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != ".sessions" {
		t.Fatalf("source = %q", got.Source)
	}
}
