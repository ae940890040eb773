package classify

import (
	"fmt"
	"regexp"
	"strings"

	"sqlpilot/internal/schema"
)

var (
	missingColumnPattern = regexp.MustCompile(`(?i)column ['"]?([\w.]+)['"]?`)
	missingTablePattern  = regexp.MustCompile(`(?i)(?:relation|table) ['"]?([\w.]+)['"]?`)
	errorNearPattern     = regexp.MustCompile(`(?i)at or near ['"]?(\w+)['"]?`)
)

// ExtractDetails pulls category-specific identifiers out of the fault
// message. full_error is always present.
func ExtractDetails(err error, cat Category) map[string]string {
	if err == nil {
		return map[string]string{}
	}
	msg := err.Error()
	details := map[string]string{"full_error": msg}
	switch cat {
	case ColumnNotFound:
		if m := missingColumnPattern.FindStringSubmatch(msg); m != nil {
			details["missing_column"] = m[1]
		}
	case TableNotFound:
		if m := missingTablePattern.FindStringSubmatch(msg); m != nil {
			details["missing_table"] = m[1]
		}
	case SyntaxError:
		if m := errorNearPattern.FindStringSubmatch(msg); m != nil {
			details["error_near"] = m[1]
		}
	}
	return details
}

// baseIdentifier strips a leading qualifier from identifiers like u.name or
// mydb.invoices so similarity ranks against bare names.
func baseIdentifier(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Feedback renders the correction hint for one fault. Column and table
// lookups become schema-aware suggestion lists when snap is available; the
// other categories use fixed templates.
func Feedback(cat Category, details map[string]string, snap *schema.Snapshot) string {
	switch cat {
	case ColumnNotFound:
		return columnFeedback(details, snap)
	case TableNotFound:
		return tableFeedback(details, snap)
	case SyntaxError:
		near := details["error_near"]
		if near == "" {
			near = "unknown"
		}
		return fmt.Sprintf(
			"SQL syntax error near '%s'. Check for typos in SQL keywords (SELECT, FROM, WHERE, JOIN, etc.).", near)
	case TypeMismatch:
		return "Type mismatch error. Check that column data types match comparison values. " +
			"Use explicit casting if needed (e.g., price::numeric > 100)."
	case JoinError:
		return "JOIN error - column reference is ambiguous. " +
			"Use table aliases (e.g., p.product_id, o.order_id) to clarify which table's column."
	case AggregationError:
		return "Aggregation error - missing GROUP BY clause. " +
			"When using COUNT/SUM/AVG, non-aggregated columns must be in GROUP BY."
	case Timeout:
		return "Query execution timeout. Query is too complex or slow. " +
			"Try simplifying, adding indexes, or using LIMIT."
	case PermissionDenied:
		return "Permission denied. " +
			"Database user lacks permission to access this table or perform this operation."
	case ConnectionError:
		return "Database connection error. " +
			"Check that the database server is running and connection settings are correct."
	default:
		raw := details["full_error"]
		if raw == "" {
			raw = "No details available"
		}
		return "Unknown error occurred: " + raw
	}
}

func columnFeedback(details map[string]string, snap *schema.Snapshot) string {
	missing := details["missing_column"]
	if missing == "" {
		missing = "unknown"
	}
	if snap == nil || len(snap.Tables) == 0 {
		return fmt.Sprintf("Column '%s' does not exist. Check schema for valid column names.", missing)
	}

	// Resolve the table the fault refers to: named in the message, or the
	// only table there is.
	fullError := strings.ToLower(details["full_error"])
	var target schema.Table
	found := false
	for _, tbl := range snap.Tables {
		if strings.Contains(fullError, strings.ToLower(tbl.Name)) {
			target = tbl
			found = true
			break
		}
	}
	if !found && len(snap.Tables) == 1 {
		target = snap.Tables[0]
		found = true
	}

	needle := baseIdentifier(missing)
	if found {
		cols := target.ColumnNames()
		suggestions := CloseMatches(needle, cols, 3, 0.6)
		if len(suggestions) > 0 {
			return fmt.Sprintf(
				"Column '%s' does not exist in table '%s'. Available columns in %s: %s. Did you mean: %s?",
				missing, target.Name, target.Name, strings.Join(cols, ", "), strings.Join(suggestions, ", "))
		}
		return fmt.Sprintf(
			"Column '%s' does not exist in table '%s'. Available columns in %s: %s.",
			missing, target.Name, target.Name, strings.Join(cols, ", "))
	}

	// No table resolved: search every table and name the holders.
	colNames := make([]string, 0, 16)
	colTables := make(map[string][]string, 16)
	for _, tbl := range snap.Tables {
		for _, col := range tbl.Columns {
			key := strings.ToLower(col.Name)
			if _, ok := colTables[key]; !ok {
				colNames = append(colNames, key)
			}
			colTables[key] = append(colTables[key], tbl.Name)
		}
	}
	suggestions := CloseMatches(strings.ToLower(needle), colNames, 3, 0.6)
	if len(suggestions) > 0 {
		parts := make([]string, 0, len(suggestions))
		for _, sug := range suggestions {
			parts = append(parts, fmt.Sprintf("%s (in %s)", sug, strings.Join(colTables[sug], ", ")))
		}
		return fmt.Sprintf("Column '%s' does not exist. Did you mean: %s?", missing, strings.Join(parts, ", "))
	}

	summaries := make([]string, 0, 3)
	for i, tbl := range snap.Tables {
		if i == 3 {
			break
		}
		cols := tbl.ColumnNames()
		if len(cols) > 3 {
			cols = cols[:3]
		}
		summaries = append(summaries, fmt.Sprintf("%s (%s...)", tbl.Name, strings.Join(cols, ", ")))
	}
	return fmt.Sprintf("Column '%s' does not exist. Available tables: %s", missing, strings.Join(summaries, ", "))
}

func tableFeedback(details map[string]string, snap *schema.Snapshot) string {
	missing := details["missing_table"]
	if missing == "" {
		missing = "unknown"
	}
	if snap == nil || len(snap.Tables) == 0 {
		return fmt.Sprintf("Table '%s' does not exist. Check schema for valid table names.", missing)
	}
	names := snap.TableNames()
	suggestions := CloseMatches(baseIdentifier(missing), names, 3, 0.6)
	if len(suggestions) > 0 {
		return fmt.Sprintf(
			"Table '%s' does not exist. Available tables: %s. Did you mean: %s?",
			missing, strings.Join(names, ", "), strings.Join(suggestions, ", "))
	}
	return fmt.Sprintf(
		"Table '%s' does not exist. Available tables: %s.",
		missing, strings.Join(names, ", "))
}
