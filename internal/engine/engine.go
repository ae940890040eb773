// Package engine executes candidate SQL under strict resource bounds. Every
// statement runs inside a read-only transaction with a transaction-scoped
// timeout and a client-side row cap, and every database fault is converted
// into a structured Outcome instead of an error return.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqlpilot/internal/classify"
	"sqlpilot/internal/config"
	"sqlpilot/internal/db"
	"sqlpilot/internal/schema"
	"sqlpilot/internal/util"
)

// Outcome is the structured result of one execution attempt.
type Outcome struct {
	Succeeded     bool              `json:"succeeded"`
	Columns       []string          `json:"columns,omitempty"`
	Rows          [][]string        `json:"rows,omitempty"`
	Category      classify.Category `json:"category,omitempty"`
	Detail        map[string]string `json:"detail,omitempty"`
	Feedback      string            `json:"feedback,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Elapsed       time.Duration     `json:"elapsed_ns"`
	RowCount      int               `json:"row_count"`
	ExecutedQuery string            `json:"executed_query"`
}

func (o Outcome) String() string {
	if o.Succeeded {
		return fmt.Sprintf("SUCCESS: %d rows in %s", o.RowCount, o.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("FAILED: %s - %s", o.Category, o.ErrorMessage)
}

// Engine runs queries against one pooled connection with bounded resources.
type Engine struct {
	conn  *db.Conn
	cfg   config.ExecutionConfig
	stats *Stats
}

// New builds an Engine over an open pool. stats is the injected accumulator
// updated on every outcome; callers share one instance across sessions.
func New(conn *db.Conn, cfg config.ExecutionConfig, stats *Stats) *Engine {
	return &Engine{conn: conn, cfg: cfg, stats: stats}
}

// Execute runs query with the configured timeout and row limit. It blocks for
// at most the timeout and never returns a Go error: faults come back as an
// Outcome carrying the classified category and correction feedback built
// against snap.
func (e *Engine) Execute(ctx context.Context, query string, snap *schema.Snapshot) Outcome {
	start := time.Now()
	bounded := InjectRowLimit(query, e.cfg.RowLimit)
	timeout := time.Duration(e.cfg.TimeoutSeconds) * time.Second
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	util.Detailf("executing: %s", util.Truncate(util.CompactSQL(bounded), 120))
	cols, rows, err := e.run(qctx, bounded, timeout)
	elapsed := time.Since(start)

	if err != nil {
		outcome := e.fault(err, bounded, elapsed, snap)
		e.stats.Update(outcome)
		return outcome
	}

	outcome := Outcome{
		Succeeded:     true,
		Columns:       cols,
		Rows:          rows,
		Elapsed:       elapsed,
		RowCount:      len(rows),
		ExecutedQuery: bounded,
	}
	e.stats.Update(outcome)
	return outcome
}

// run executes one statement inside a read-only transaction. On Postgres the
// timeout is applied with SET LOCAL so it dies with the transaction; on MySQL
// it becomes a per-statement MAX_EXECUTION_TIME hint. Both stay under the
// context deadline, which cancels the statement server-side. Nothing
// session-scoped ever touches the connection.
func (e *Engine) run(ctx context.Context, query string, timeout time.Duration) ([]string, [][]string, error) {
	tx, err := e.conn.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timeoutMs := timeout.Milliseconds()
	if e.conn.Dialect == db.DialectPostgres {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeoutMs)); err != nil {
			return nil, nil, err
		}
	} else {
		query = withExecutionTimeHint(query, timeoutMs)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer util.CloseWithErr(rows, "query rows")

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	// Second safety net: stop reading at the row limit even when the LIMIT
	// injection left the query under-bounded.
	out := make([][]string, 0, min(e.cfg.RowLimit, 64))
	values := make([][]byte, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for len(out) < e.cfg.RowLimit && rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
			} else {
				row[i] = string(v)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func (e *Engine) fault(err error, executed string, elapsed time.Duration, snap *schema.Snapshot) Outcome {
	category := classify.Classify(err)
	detail := classify.ExtractDetails(err, category)
	feedback := classify.Feedback(category, detail, snap)
	util.Warnf("execution failed category=%s err=%v", category, err)
	return Outcome{
		Category:      category,
		Detail:        detail,
		Feedback:      feedback,
		ErrorMessage:  err.Error(),
		Elapsed:       elapsed,
		ExecutedQuery: executed,
	}
}
