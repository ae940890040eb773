package validator

import (
	"fmt"
	"regexp"
	"strings"

	"sqlpilot/internal/schema"
)

var (
	fromTablePattern    = regexp.MustCompile(`FROM\s+(\w+)`)
	joinTablePattern    = regexp.MustCompile(`JOIN\s+(\w+)`)
	cteNamePattern      = regexp.MustCompile(`WITH\s+(\w+)\s+AS`)
	qualifiedColPattern = regexp.MustCompile(`(\w+)\.(\w+)`)
	functionArgPattern  = regexp.MustCompile(`(?i)\b\w+\s*\([^)]*?,\s*([A-Za-z_][\w.]*)\)`)
	selectListPattern   = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
	aliasPattern        = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+(\w+)\s+(?:AS\s+)?(\w+)`)
)

// Select-list items containing any of these are expressions or keywords, not
// bare column names.
var selectSkipWords = []string{"AS", "COUNT", "SUM", "AVG", "MAX", "MIN", "DISTINCT", "*"}

// extractTables returns the distinct source names referenced via FROM/JOIN
// plus declared CTE names, lowercased in appearance order. The CTE set is
// returned separately so existence checks can exempt query-local sources.
func extractTables(sql string) ([]string, map[string]bool) {
	upper := strings.ToUpper(sql)
	names := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	appendMatches := func(pattern *regexp.Regexp) {
		for _, m := range pattern.FindAllStringSubmatch(upper, -1) {
			name := strings.ToLower(m[1])
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	appendMatches(fromTablePattern)
	appendMatches(joinTablePattern)

	ctes := make(map[string]bool)
	for _, m := range cteNamePattern.FindAllStringSubmatch(upper, -1) {
		name := strings.ToLower(m[1])
		ctes[name] = true
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, ctes
}

// columnRef is one table/column pair referenced by the query, with the table
// already resolved through aliases.
type columnRef struct {
	table  string
	column string
}

// extractColumnRefs collects column references in appearance order:
// qualified table.column pairs, last arguments of multi-argument function
// calls, and (for single-table queries only) bare select-list columns.
// Aliases declared in FROM/JOIN are resolved to their table names.
func extractColumnRefs(sql string, tables []string) []columnRef {
	refs := make([]columnRef, 0, 8)
	seen := make(map[columnRef]bool, 8)
	add := func(table, column string) {
		ref := columnRef{table: strings.ToLower(table), column: strings.ToLower(column)}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, m := range qualifiedColPattern.FindAllStringSubmatch(sql, -1) {
		add(m[1], m[2])
	}

	single := ""
	if len(tables) == 1 {
		single = tables[0]
	}

	// DATE_TRUNC('month', order_date) and the like: the trailing argument is
	// a column. Qualified args split on the dot; bare args only attribute to
	// a single-table query.
	for _, m := range functionArgPattern.FindAllStringSubmatch(sql, -1) {
		arg := strings.Trim(strings.TrimSpace(m[1]), "), ")
		arg = strings.Trim(arg, `"'`)
		if arg == "" {
			continue
		}
		if table, column, ok := strings.Cut(arg, "."); ok {
			add(table, column)
		} else if single != "" {
			add(single, arg)
		}
	}

	// Bare select-list columns are too ambiguous to attribute across joins,
	// so they are only checked when exactly one table is referenced.
	if single != "" {
		if m := selectListPattern.FindStringSubmatch(sql); m != nil {
			for _, item := range strings.Split(m[1], ",") {
				item = strings.TrimSpace(item)
				if item == "" || strings.Contains(item, ".") {
					continue
				}
				upper := strings.ToUpper(item)
				if containsAnySkipWord(upper) {
					continue
				}
				name := strings.Trim(strings.Fields(item)[0], "(),")
				if name == "" || isSkipWord(strings.ToUpper(name)) {
					continue
				}
				add(single, name)
			}
		}
	}

	return resolveAliases(sql, refs)
}

func containsAnySkipWord(upper string) bool {
	for _, kw := range selectSkipWords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func isSkipWord(upper string) bool {
	for _, kw := range selectSkipWords {
		if upper == kw {
			return true
		}
	}
	return false
}

// resolveAliases maps alias qualifiers back to their table names using
// FROM/JOIN alias declarations, deduplicating refs that collapse together.
func resolveAliases(sql string, refs []columnRef) []columnRef {
	aliasMap := make(map[string]string)
	for _, m := range aliasPattern.FindAllStringSubmatch(sql, -1) {
		table, alias := strings.ToLower(m[1]), strings.ToLower(m[2])
		if table != alias {
			aliasMap[alias] = table
		}
	}
	if len(aliasMap) == 0 {
		return refs
	}
	resolved := make([]columnRef, 0, len(refs))
	seen := make(map[columnRef]bool, len(refs))
	for _, ref := range refs {
		if table, ok := aliasMap[ref.table]; ok {
			ref.table = table
		}
		if !seen[ref] {
			seen[ref] = true
			resolved = append(resolved, ref)
		}
	}
	return resolved
}

// checkExistence verifies referenced tables and columns against the snapshot.
// Each missing table or column is one stacking violation.
func checkExistence(sql string, snap *schema.Snapshot) LayerResult {
	res := LayerResult{Name: "existence", Valid: true}
	if snap == nil || len(snap.Tables) == 0 {
		return LayerResult{Name: "existence", Issues: []string{"No schema provided for validation"}}
	}

	names, ctes := extractTables(sql)
	for _, name := range names {
		if ctes[name] {
			continue
		}
		if !snap.HasTable(name) {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"Table '%s' not in schema (available: %s)",
				name, strings.Join(snap.TableNames(), ", ")))
		}
	}

	for _, ref := range extractColumnRefs(sql, names) {
		if ctes[ref.table] {
			continue // query-local source shadows any schema table
		}
		tbl, ok := snap.Table(ref.table)
		if !ok {
			continue // missing table already flagged above
		}
		if ref.column == "*" || tbl.HasColumn(ref.column) {
			continue
		}
		avail := tbl.ColumnNames()
		if len(avail) > 5 {
			avail = avail[:5]
		}
		res.Issues = append(res.Issues, fmt.Sprintf(
			"Column '%s' not in table '%s' (available: %s...)",
			ref.column, ref.table, strings.Join(avail, ", ")))
	}

	res.Valid = len(res.Issues) == 0
	return res
}
