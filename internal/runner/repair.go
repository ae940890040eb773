package runner

import (
	"regexp"
	"strings"

	"sqlpilot/internal/classify"
	"sqlpilot/internal/schema"
)

const (
	qualifiedRepairCutoff = 0.6
	bareRepairCutoff      = 0.7
)

var (
	qualifiedRefPattern = regexp.MustCompile(`(\w+)\.(\w+)`)
	wordPattern         = regexp.MustCompile(`\b\w+\b`)
)

var repairKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"order": true, "by": true, "limit": true, "group": true, "having": true,
	"join": true, "on": true, "as": true, "with": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "distinct": true,
	"count": true, "sum": true, "avg": true, "max": true, "min": true,
	"inner": true, "left": true, "right": true, "outer": true, "asc": true,
	"desc": true, "not": true, "null": true, "in": true, "like": true,
	"between": true, "is": true,
}

// RepairColumns rewrites unknown column references to the nearest declared
// column. Qualified references repair against their table's columns at
// cutoff 0.6; bare words repair across all tables at the stricter 0.7, first
// occurrence only. The rewrite is textual and best-effort: the result goes
// back through validation, never straight to execution.
func RepairColumns(sql string, snap *schema.Snapshot) string {
	if snap == nil || len(snap.Tables) == 0 {
		return sql
	}

	columnsByTable := make(map[string][]string, len(snap.Tables))
	for _, tbl := range snap.Tables {
		cols := make([]string, 0, len(tbl.Columns))
		for _, col := range tbl.Columns {
			cols = append(cols, strings.ToLower(col.Name))
		}
		columnsByTable[strings.ToLower(tbl.Name)] = cols
	}

	for _, m := range qualifiedRefPattern.FindAllStringSubmatch(sql, -1) {
		table, column := m[1], m[2]
		candidates, ok := columnsByTable[strings.ToLower(table)]
		if !ok || containsFold(candidates, column) {
			continue
		}
		matches := classify.CloseMatches(strings.ToLower(column), candidates, 1, qualifiedRepairCutoff)
		if len(matches) == 0 {
			continue
		}
		refPattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(table) + `\.` + regexp.QuoteMeta(column) + `\b`)
		sql = refPattern.ReplaceAllString(sql, table+"."+matches[0])
	}

	allColumns := make([]string, 0, 16)
	seen := make(map[string]bool, 16)
	for _, cols := range columnsByTable {
		for _, col := range cols {
			if !seen[col] {
				seen[col] = true
				allColumns = append(allColumns, col)
			}
		}
	}

	for _, word := range wordPattern.FindAllString(strings.ToLower(sql), -1) {
		if repairKeywords[word] || seen[word] || word[0] >= '0' && word[0] <= '9' {
			continue
		}
		if _, isTable := columnsByTable[word]; isTable {
			continue
		}
		matches := classify.CloseMatches(word, allColumns, 1, bareRepairCutoff)
		if len(matches) == 0 {
			continue
		}
		bare := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		replaced := false
		sql = bare.ReplaceAllStringFunc(sql, func(s string) string {
			if replaced {
				return s
			}
			replaced = true
			return matches[0]
		})
	}
	return sql
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
