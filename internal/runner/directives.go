package runner

import (
	"fmt"
	"regexp"
	"strings"

	"sqlpilot/internal/classify"
	"sqlpilot/internal/engine"
	"sqlpilot/internal/validator"
)

// Directive construction. Validator rejections replay the issues verbatim;
// execution faults route to a category-specific template. The aggregation
// template pins existing aggregates in place so retries converge instead of
// oscillating between adding GROUP BY and dropping the aggregate.

var directiveColumnPattern = regexp.MustCompile(`(?i)column ['"]([\w.]+)['"]`)

// verdictDirective builds the retry instruction for a query the validator
// rejected before execution.
func verdictDirective(verdict validator.Verdict, failedSQL, question string) string {
	var b strings.Builder
	b.WriteString("IMPORTANT: Previous SQL was incorrect. You MUST fix the error.\n\n")
	b.WriteString("Failed SQL:\n")
	b.WriteString(failedSQL)
	b.WriteString("\n\nValidation issues:\n")
	for _, issue := range verdict.Issues {
		b.WriteString("- ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	b.WriteString("\nFix and regenerate for: ")
	b.WriteString(question)
	return b.String()
}

// faultDirective builds the retry instruction for an execution fault.
func faultDirective(outcome engine.Outcome, failedSQL, question string) string {
	var body string
	switch outcome.Category {
	case classify.ColumnNotFound:
		body = columnDirective(outcome, failedSQL, question)
	case classify.AggregationError:
		body = aggregationDirective(failedSQL, question)
	case classify.Timeout:
		body = timeoutDirective(failedSQL, question)
	default:
		body = genericDirective(outcome, failedSQL, question)
	}
	return "IMPORTANT: Previous SQL was incorrect.\n" +
		"You MUST fix the listed issues.\n" +
		"Do NOT repeat the same SQL.\n\n" + body
}

func columnDirective(outcome engine.Outcome, failedSQL, question string) string {
	missing := outcome.Detail["missing_column"]
	if missing == "" {
		if m := directiveColumnPattern.FindStringSubmatch(outcome.Feedback); m != nil {
			missing = m[1]
		} else {
			missing = "unknown"
		}
	}
	return fmt.Sprintf("Failed SQL:\n%s\n\nError: %s\n\nDO NOT use column '%s' again.\n"+
		"Replace it using correct schema columns.\n\nReturn corrected SQL only for: %s",
		failedSQL, outcome.Feedback, missing, question)
}

func aggregationDirective(failedSQL, question string) string {
	return fmt.Sprintf("Failed SQL:\n%s\n\nError: Missing GROUP BY clause.\n\n"+
		"Do NOT change joins or aggregations.\nOnly add required columns to GROUP BY.\n\n"+
		"Return corrected SQL for: %s", failedSQL, question)
}

func timeoutDirective(failedSQL, question string) string {
	hints := make([]string, 0, 3)
	if !strings.Contains(strings.ToUpper(failedSQL), "LIMIT") {
		hints = append(hints, "- Add LIMIT 100 if missing")
	}
	hints = append(hints, "- Remove unnecessary JOINs", "- Simplify complex aggregations")
	return fmt.Sprintf("Failed SQL (timed out):\n%s\n\nError: Query timeout.\n\n"+
		"Simplify the query:\n%s\n\nRegenerate simpler SQL for: %s",
		failedSQL, strings.Join(hints, "\n"), question)
}

func genericDirective(outcome engine.Outcome, failedSQL, question string) string {
	feedback := outcome.Feedback
	if feedback == "" {
		feedback = outcome.ErrorMessage
	}
	return fmt.Sprintf("Failed SQL:\n%s\n\nError:\n%s\n\n"+
		"Do NOT repeat the same mistake.\nReturn corrected SQL only for: %s",
		failedSQL, feedback, question)
}
