// Package generate defines the SQL generation seam and a Gemini-backed
// implementation. The orchestrator only depends on the Generator interface;
// anything producing query text from a question and a schema snapshot fits.
package generate

import (
	"context"

	"sqlpilot/internal/schema"
)

// Generator produces one candidate SQL query per call. directive is empty on
// the first attempt and carries the correction instructions on retries.
// Implementations must be re-invocable and keep no hidden state between
// attempts.
type Generator interface {
	Generate(ctx context.Context, question string, snap *schema.Snapshot, directive string) (string, error)
}
