// Package runner drives the bounded self-correction loop: generate,
// validate, execute, classify, decide. A session runs one question to a
// terminal state; independent sessions share only the engine's pool and the
// injected accumulators.
package runner

import (
	"context"
	"strings"

	"sqlpilot/internal/config"
	"sqlpilot/internal/engine"
	"sqlpilot/internal/generate"
	"sqlpilot/internal/report"
	"sqlpilot/internal/schema"
	"sqlpilot/internal/uploader"
	"sqlpilot/internal/util"
	"sqlpilot/internal/validator"
)

// Executor runs one bounded execution attempt. Satisfied by *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, sql string, snap *schema.Snapshot) engine.Outcome
}

// SchemaResolver produces the schema snapshot for a question. It is invoked
// exactly once per session; the snapshot is reused across every attempt.
type SchemaResolver interface {
	Resolve(ctx context.Context, question string) (*schema.Snapshot, error)
}

type staticResolver struct {
	snap *schema.Snapshot
}

func (r staticResolver) Resolve(context.Context, string) (*schema.Snapshot, error) {
	return r.snap, nil
}

// StaticResolver serves a pre-extracted snapshot to every session.
func StaticResolver(snap *schema.Snapshot) SchemaResolver {
	return staticResolver{snap: snap}
}

// TerminalReason states why a session ended without success.
type TerminalReason string

// Terminal reasons. Empty means the session succeeded.
const (
	ReasonExhausted    TerminalReason = "exhausted"     // attempt cap reached
	ReasonStalled      TerminalReason = "stalled"       // identical regeneration
	ReasonNonRetryable TerminalReason = "non_retryable" // permission or connection fault
	ReasonGenerator    TerminalReason = "generator"     // generator returned an error
	ReasonSchema       TerminalReason = "schema"        // snapshot resolution failed
)

// Result is the terminal outcome of one session. On failure it carries the
// last attempt's verdict, outcome and feedback, never just an attempt count.
type Result struct {
	Question  string
	FinalSQL  string
	Succeeded bool
	Attempts  int
	Reason    TerminalReason
	Verdict   validator.Verdict
	Outcome   engine.Outcome
	Detail    string
}

// WasCorrected reports a success that needed more than one attempt.
func (r Result) WasCorrected() bool {
	return r.Succeeded && r.Attempts > 1
}

// FailureText renders the last diagnostic for consumers.
func (r Result) FailureText() string {
	if r.Succeeded {
		return ""
	}
	switch {
	case r.Outcome.Feedback != "":
		return string(r.Reason) + ": " + r.Outcome.Feedback
	case len(r.Verdict.Issues) > 0:
		return string(r.Reason) + ": " + strings.Join(r.Verdict.Issues, "; ")
	case r.Detail != "":
		return string(r.Reason) + ": " + r.Detail
	default:
		return string(r.Reason)
	}
}

// Runner owns the per-process collaborators of the correction loop.
type Runner struct {
	cfg       config.Config
	validator *validator.Validator
	exec      Executor
	gen       generate.Generator
	resolver  SchemaResolver
	metrics   *Metrics
	reporter  *report.Reporter
	uploader  uploader.Uploader
}

// New wires a Runner. reporter may be nil to disable session artifacts;
// metrics must be the injected process-wide accumulator.
func New(cfg config.Config, gen generate.Generator, exec Executor, resolver SchemaResolver, metrics *Metrics, reporter *report.Reporter, up uploader.Uploader) *Runner {
	if up == nil {
		up = uploader.NoopUploader{}
	}
	return &Runner{
		cfg:       cfg,
		validator: validator.New(cfg.Validator),
		exec:      exec,
		gen:       gen,
		resolver:  resolver,
		metrics:   metrics,
		reporter:  reporter,
		uploader:  up,
	}
}

// Run executes one correction session to a terminal state. The loop is an
// explicit bounded for carrying the normalized query history; guards run in
// fixed order (cap first, then stall) before every retry.
func (r *Runner) Run(ctx context.Context, question string) Result {
	util.Infof("session start question=%q", util.Truncate(question, 120))

	snap, err := r.resolver.Resolve(ctx, question)
	if err != nil {
		res := Result{Question: question, Reason: ReasonSchema, Detail: err.Error()}
		r.finish(ctx, res, nil)
		return res
	}

	maxAttempts := r.cfg.Correction.MaxAttempts
	history := make([]string, 0, maxAttempts)
	attempts := make([]report.Attempt, 0, maxAttempts)
	directive := ""
	res := Result{Question: question}

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		sqlText, err := r.gen.Generate(ctx, question, snap, directive)
		if err != nil {
			// Generator failure is a distinct orchestrator-level fault,
			// never retried.
			util.Errorf("generator failed attempt=%d err=%v", attempt, err)
			res.Reason = ReasonGenerator
			res.Detail = err.Error()
			break
		}
		if prev := len(history) - 1; prev >= 0 {
			util.Detailf("attempt %d diff: %s", attempt, SQLDiff(history[prev], sqlText))
		}

		verdict := r.validator.Validate(sqlText, snap)
		if !verdict.IsValid && r.cfg.Correction.RepairColumns && hasMissingColumnIssue(verdict) {
			if fixed := RepairColumns(sqlText, snap); NormalizeSQL(fixed) != NormalizeSQL(sqlText) {
				util.Infof("column repair applied attempt=%d", attempt)
				sqlText = fixed
				verdict = r.validator.Validate(sqlText, snap)
			}
		}
		res.FinalSQL = sqlText
		res.Verdict = verdict

		if verdict.IsValid {
			outcome := r.exec.Execute(ctx, sqlText, snap)
			res.Outcome = outcome
			attempts = append(attempts, report.Attempt{Number: attempt, SQL: sqlText, Verdict: verdict, Outcome: &outcome})
			if outcome.Succeeded {
				res.Succeeded = true
				break
			}
			if !outcome.Category.Retryable() {
				util.Warnf("non-retryable fault category=%s", outcome.Category)
				res.Reason = ReasonNonRetryable
				break
			}
			directive = faultDirective(outcome, sqlText, question)
		} else {
			util.Warnf("validator rejected attempt=%d confidence=%.2f issues=%d", attempt, verdict.Confidence, len(verdict.Issues))
			res.Outcome = engine.Outcome{} // diagnostics come from this verdict, not an earlier execution
			attempts = append(attempts, report.Attempt{Number: attempt, SQL: sqlText, Verdict: verdict})
			directive = verdictDirective(verdict, sqlText, question)
		}

		if attempt >= maxAttempts {
			res.Reason = ReasonExhausted
			break
		}
		norm := NormalizeSQL(sqlText)
		if len(history) > 0 && history[len(history)-1] == norm {
			util.Warnf("retry guard: regenerated SQL unchanged, stopping")
			res.Reason = ReasonStalled
			break
		}
		history = append(history, norm)
	}

	r.finish(ctx, res, attempts)
	return res
}

func hasMissingColumnIssue(verdict validator.Verdict) bool {
	for _, issue := range verdict.Issues {
		if strings.Contains(strings.ToLower(issue), "not in table") ||
			strings.Contains(strings.ToLower(issue), "does not exist") {
			return true
		}
	}
	return false
}

// finish records metrics, logs the terminal state and writes the session
// report.
func (r *Runner) finish(ctx context.Context, res Result, attempts []report.Attempt) {
	r.metrics.Update(res)
	if res.Succeeded {
		if res.WasCorrected() {
			util.Infof("session success after correction attempts=%d rows=%d", res.Attempts, res.Outcome.RowCount)
		} else {
			util.Infof("session success on first attempt rows=%d", res.Outcome.RowCount)
		}
	} else {
		util.Errorf("session failed attempts=%d reason=%s", res.Attempts, res.Reason)
	}

	if r.reporter == nil {
		return
	}
	sum := report.Summary{
		Question:   res.Question,
		FinalSQL:   res.FinalSQL,
		Succeeded:  res.Succeeded,
		Attempts:   res.Attempts,
		Reason:     string(res.Reason),
		Category:   string(res.Outcome.Category),
		Error:      res.FailureText(),
		Confidence: res.Verdict.Confidence,
		Issues:     res.Verdict.Issues,
		RowCount:   res.Outcome.RowCount,
		ElapsedMs:  res.Outcome.Elapsed.Milliseconds(),
	}
	loc, err := r.reporter.WriteSession(sum, attempts)
	if err != nil {
		util.Warnf("session report failed: %v", err)
		return
	}
	if !r.uploader.Enabled() {
		return
	}
	if r.cfg.Reports.UploadFailuresOnly && res.Succeeded {
		return
	}
	url, err := r.uploader.UploadDir(ctx, loc)
	if err != nil {
		util.Warnf("session upload failed: %v", err)
		return
	}
	if url != "" {
		util.Infof("session uploaded to %s", url)
	}
}
