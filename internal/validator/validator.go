// Package validator scores candidate SQL before execution through four
// independent checks: structure, table/column existence, safety, and
// structural plausibility. Scoring is pure text analysis, no I/O.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"sqlpilot/internal/config"
	"sqlpilot/internal/schema"
)

// LayerResult records one check layer's outcome for diagnostics.
type LayerResult struct {
	Name   string   `json:"name"`
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// Verdict is the outcome of validating one candidate query.
type Verdict struct {
	IsValid    bool          `json:"is_valid"`
	Confidence float64       `json:"confidence"`
	Issues     []string      `json:"issues,omitempty"`
	Layers     []LayerResult `json:"layers"`
}

func (v Verdict) String() string {
	status := "VALID"
	if !v.IsValid {
		status = "INVALID"
	}
	return fmt.Sprintf("%s (confidence: %.2f) - %d issues", status, v.Confidence, len(v.Issues))
}

// Statement-level keywords that mutate state. Matched on word boundaries so
// column names like created_at or updated_by stay clean.
var unsafeKeywords = []string{
	"DROP", "DELETE", "ALTER", "TRUNCATE",
	"UPDATE", "INSERT", "CREATE", "REPLACE",
}

var unsafePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(unsafeKeywords))
	for i, kw := range unsafeKeywords {
		out[i] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return out
}()

var aggregateFuncs = []string{"COUNT(", "SUM(", "AVG(", "MAX(", "MIN("}

// Validator runs the four checks with configured penalties and threshold.
type Validator struct {
	threshold           float64
	structuralPenalty   float64
	existencePenalty    float64
	plausibilityPenalty float64
}

// New builds a Validator from the validator config section.
func New(cfg config.ValidatorConfig) *Validator {
	return &Validator{
		threshold:           cfg.ConfidenceThreshold,
		structuralPenalty:   cfg.StructuralPenalty,
		existencePenalty:    cfg.ExistencePenalty,
		plausibilityPenalty: cfg.PlausibilityPenalty,
	}
}

// Validate scores query against snap. Confidence starts at 1.0; each layer's
// penalty subtracts, safety hard-overrides to 0, and the result is clamped to
// [0,1]. All layers always run so the verdict carries every issue found.
func (v *Validator) Validate(query string, snap *schema.Snapshot) Verdict {
	confidence := 1.0
	issues := make([]string, 0, 4)
	layers := make([]LayerResult, 0, 4)

	structural := checkStructural(query)
	layers = append(layers, structural)
	if !structural.Valid {
		confidence -= v.structuralPenalty
		issues = append(issues, structural.Issues...)
	}

	existence := checkExistence(query, snap)
	layers = append(layers, existence)
	if !existence.Valid {
		confidence -= v.existencePenalty * float64(len(existence.Issues))
		issues = append(issues, existence.Issues...)
	}

	safety := checkSafety(query)
	layers = append(layers, safety)
	if !safety.Valid {
		confidence = 0
		issues = append(issues, safety.Issues...)
	}

	plausibility := checkPlausibility(query)
	layers = append(layers, plausibility)
	if !plausibility.Valid {
		confidence -= v.plausibilityPenalty * float64(len(plausibility.Issues))
		issues = append(issues, plausibility.Issues...)
	}

	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return Verdict{
		IsValid:    confidence >= v.threshold && confidence > 0,
		Confidence: confidence,
		Issues:     issues,
		Layers:     layers,
	}
}

// checkStructural verifies the query is non-empty, starts with a read clause
// and has balanced parentheses. The first failure short-circuits the layer.
func checkStructural(sql string) LayerResult {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return LayerResult{Name: "structural", Issues: []string{"Empty SQL query"}}
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return LayerResult{Name: "structural", Issues: []string{"SQL must start with SELECT or WITH"}}
	}
	if strings.Count(sql, "(") != strings.Count(sql, ")") {
		return LayerResult{Name: "structural", Issues: []string{"Unmatched parentheses"}}
	}
	return LayerResult{Name: "structural", Valid: true}
}

// checkSafety flags statement-level mutating keywords, one issue per keyword.
func checkSafety(sql string) LayerResult {
	res := LayerResult{Name: "safety", Valid: true}
	upper := strings.ToUpper(sql)
	for i, pattern := range unsafePatterns {
		if pattern.MatchString(upper) {
			res.Issues = append(res.Issues, "Unsafe operation detected: "+unsafeKeywords[i])
		}
	}
	res.Valid = len(res.Issues) == 0
	return res
}

// checkPlausibility runs the two mechanical warnings: multiple tables without
// a JOIN, and aggregation over a multi-column select list without GROUP BY.
func checkPlausibility(sql string) LayerResult {
	res := LayerResult{Name: "plausibility", Valid: true}
	upper := strings.ToUpper(sql)

	names, _ := extractTables(sql)
	if len(names) > 1 && !strings.Contains(upper, "JOIN") {
		res.Issues = append(res.Issues,
			"Multiple tables detected but no JOIN found (possible cartesian product)")
	}

	if hasAggregate(upper) && !strings.Contains(upper, "GROUP BY") {
		selectClause, _, _ := strings.Cut(upper, "FROM")
		if strings.Contains(selectClause, ",") {
			res.Issues = append(res.Issues, "Aggregation with multiple columns but no GROUP BY")
		}
	}

	res.Valid = len(res.Issues) == 0
	return res
}

func hasAggregate(upper string) bool {
	for _, fn := range aggregateFuncs {
		if strings.Contains(upper, fn) {
			return true
		}
	}
	return false
}
