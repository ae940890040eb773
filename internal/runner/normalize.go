package runner

import (
	"regexp"
	"strings"
)

var (
	lineCommentPattern  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// NormalizeSQL prepares a query for stall comparison: comments stripped,
// lowercased, whitespace collapsed. Formatting-only regenerations compare
// equal; any functional change does not.
func NormalizeSQL(sql string) string {
	sql = lineCommentPattern.ReplaceAllString(sql, "")
	sql = blockCommentPattern.ReplaceAllString(sql, "")
	return strings.Join(strings.Fields(strings.ToLower(sql)), " ")
}

// SQLDiff summarizes word-level changes between two queries for logging.
func SQLDiff(prev, next string) string {
	normPrev := NormalizeSQL(prev)
	normNext := NormalizeSQL(next)
	if normPrev == normNext {
		return "no functional changes (formatting only)"
	}
	prevWords := strings.Fields(normPrev)
	nextWords := strings.Fields(normNext)
	changes := make([]string, 0, 3)
	longest := len(prevWords)
	if len(nextWords) > longest {
		longest = len(nextWords)
	}
	extra := 0
	for i := 0; i < longest; i++ {
		var w1, w2 string
		if i < len(prevWords) {
			w1 = prevWords[i]
		}
		if i < len(nextWords) {
			w2 = nextWords[i]
		}
		if w1 == w2 {
			continue
		}
		if len(changes) == 3 {
			extra++
			continue
		}
		switch {
		case w1 == "":
			changes = append(changes, "added '"+w2+"'")
		case w2 == "":
			changes = append(changes, "removed '"+w1+"'")
		default:
			changes = append(changes, "'"+w1+"' -> '"+w2+"'")
		}
	}
	if len(changes) == 0 {
		return "structural changes detected"
	}
	summary := strings.Join(changes, ", ")
	if extra > 0 {
		summary += " (and more)"
	}
	return summary
}
