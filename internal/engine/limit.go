package engine

import (
	"fmt"
	"strings"
)

// InjectRowLimit appends a LIMIT clause when the query carries none. The
// check is a case-insensitive substring test: if LIMIT appears anywhere, the
// query is trusted as already bounded. That under-bounds queries whose only
// LIMIT lives inside a nested sub-select or CTE; the row cap applied while
// reading the cursor covers those, so this stays a textual transform instead
// of a parser.
func InjectRowLimit(sql string, limit int) string {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if !strings.Contains(strings.ToUpper(sql), "LIMIT") {
		sql = fmt.Sprintf("%s LIMIT %d", sql, limit)
	}
	return sql
}

// withExecutionTimeHint injects a MAX_EXECUTION_TIME optimizer hint after the
// first SELECT keyword. The hint is statement-scoped, so nothing sticks to
// the connection when it goes back to the pool. Non-SELECT heads (WITH) are
// returned unchanged and rely on context cancellation alone.
func withExecutionTimeHint(sql string, timeoutMs int64) string {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return sql
	}
	if strings.Contains(upper, "MAX_EXECUTION_TIME") {
		return sql
	}
	head := trimmed[:len("SELECT")]
	rest := trimmed[len("SELECT"):]
	return fmt.Sprintf("%s /*+ MAX_EXECUTION_TIME(%d) */%s", head, timeoutMs, rest)
}
