package generate

import (
	"strings"

	"sqlpilot/internal/db"
	"sqlpilot/internal/schema"
)

const postgresReminders = `- Use :: for type casting (e.g., column_name::INTEGER)
- Date functions: DATE_TRUNC('month', date_column), CURRENT_DATE
- Limit results: ORDER BY column LIMIT N
- String matching: ILIKE for case-insensitive search`

const mysqlReminders = `- Use CAST(column_name AS SIGNED) for type casting
- Date functions: DATE_FORMAT(date_column, '%Y-%m'), CURDATE()
- Limit results: ORDER BY column LIMIT N
- String matching: LIKE is case-insensitive under default collations`

const safetyRules = `- Use ONLY the tables and columns listed in the schema above
- Do NOT reference tables or columns not explicitly provided
- Never use DROP, DELETE, ALTER, TRUNCATE, or other destructive operations
- When multiple tables are required, use explicit JOIN conditions based on foreign keys
- Avoid SELECT *; select only necessary columns
- When using aggregation, ensure correct GROUP BY clauses`

// BuildPrompt renders the generation prompt: schema text, dialect syntax
// reminders, safety rules, the question, and on retries the correction
// directive from the previous cycle.
func BuildPrompt(question string, snap *schema.Snapshot, directive string, dialect db.Dialect) string {
	reminders := postgresReminders
	dialectName := "PostgreSQL"
	if dialect == db.DialectMySQL {
		reminders = mysqlReminders
		dialectName = "MySQL"
	}

	var b strings.Builder
	b.WriteString("You are a ")
	b.WriteString(dialectName)
	b.WriteString(" SQL expert. Generate accurate SQL queries based on the provided database schema.\n\n")
	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(snap.FormatText())
	b.WriteString("\n\n")
	b.WriteString(dialectName)
	b.WriteString(" SYNTAX REMINDERS:\n")
	b.WriteString(reminders)
	b.WriteString("\n\nSAFETY RULES:\n")
	b.WriteString(safetyRules)
	if directive != "" {
		b.WriteString("\n\nCORRECTION:\n")
		b.WriteString(directive)
	}
	b.WriteString("\n\nUSER QUESTION:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nOUTPUT:\nReturn ONLY the SQL query starting with SELECT or WITH. No explanations or markdown.")
	return b.String()
}

// ExtractSQL strips markdown code fences and surrounding whitespace from a
// model response.
func ExtractSQL(response string) string {
	sql := strings.TrimSpace(response)
	if strings.HasPrefix(sql, "```sql") {
		sql = sql[len("```sql"):]
	} else if strings.HasPrefix(sql, "```") {
		sql = sql[len("```"):]
	}
	if strings.HasSuffix(sql, "```") {
		sql = sql[:len(sql)-len("```")]
	}
	return strings.TrimSpace(sql)
}
