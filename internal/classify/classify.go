// Package classify assigns execution faults to a closed category taxonomy
// and produces schema-aware correction feedback.
package classify

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Category tags one execution fault.
type Category string

// The closed taxonomy. Every fault maps to exactly one of these.
const (
	ColumnNotFound   Category = "column_not_found"
	TableNotFound    Category = "table_not_found"
	SyntaxError      Category = "syntax_error"
	TypeMismatch     Category = "type_mismatch"
	JoinError        Category = "join_error"
	AggregationError Category = "aggregation_error"
	Timeout          Category = "timeout"
	PermissionDenied Category = "permission_denied"
	ConnectionError  Category = "connection_error"
	Unknown          Category = "unknown"
)

// Retryable reports whether regenerating the query can fix this category.
// Permission and connectivity faults need operator intervention instead.
func (c Category) Retryable() bool {
	return c != PermissionDenied && c != ConnectionError
}

type rule struct {
	category Category
	match    func(err error, msg string) bool
}

// rules is evaluated in order, first match wins. The order is a correctness
// requirement: fault messages match several signatures at once (a grouping
// fault mentions "column" too), so more specific categories come first.
var rules = []rule{
	{Timeout, matchTimeout},
	{ConnectionError, matchConnection},
	{PermissionDenied, matchPermission},
	{ColumnNotFound, matchColumnNotFound},
	{TableNotFound, matchTableNotFound},
	{AggregationError, matchAggregation},
	{JoinError, matchJoin},
	{TypeMismatch, matchTypeMismatch},
	{SyntaxError, matchSyntax},
}

// Classify assigns err to the first matching category.
func Classify(err error) Category {
	if err == nil {
		return Unknown
	}
	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		if r.match(err, msg) {
			return r.category
		}
	}
	return Unknown
}

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

func mysqlCode(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

func mysqlCodeIn(err error, numbers ...uint16) bool {
	num, ok := mysqlCode(err)
	if !ok {
		return false
	}
	for _, n := range numbers {
		if num == n {
			return true
		}
	}
	return false
}

func containsAny(msg string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

func matchTimeout(err error, msg string) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code, ok := pgCode(err); ok && code == "57014" {
		return true
	}
	// 3024 is max_execution_time exceeded, 1317 is query interrupted.
	if mysqlCodeIn(err, 3024, 1317) {
		return true
	}
	return containsAny(msg,
		"canceling statement due to statement timeout",
		"query_timeout",
		"execution timeout",
		"statement timeout")
}

func matchConnection(err error, msg string) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if code, ok := pgCode(err); ok && strings.HasPrefix(code, "08") {
		return true
	}
	if mysqlCodeIn(err, 2002, 2003, 2006, 2013) {
		return true
	}
	return containsAny(msg,
		"could not connect to server",
		"connection refused",
		"connection reset",
		"connection timed out",
		"server closed the connection")
}

func matchPermission(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42501" {
		return true
	}
	if mysqlCodeIn(err, 1044, 1045, 1142) {
		return true
	}
	return containsAny(msg,
		"permission denied",
		"must be owner of",
		"access denied")
}

var columnMissingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`column .* does not exist`),
	regexp.MustCompile(`column .* of relation .* does not exist`),
}

func matchColumnNotFound(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42703" {
		return true
	}
	if mysqlCodeIn(err, 1054) {
		return true
	}
	for _, p := range columnMissingPatterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return strings.Contains(msg, "unknown column")
}

var tableMissingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`relation .* does not exist`),
	regexp.MustCompile(`table .* does not exist`),
}

func matchTableNotFound(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42P01" {
		return true
	}
	if mysqlCodeIn(err, 1146) {
		return true
	}
	for _, p := range tableMissingPatterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return strings.Contains(msg, "doesn't exist")
}

var aggregationPattern = regexp.MustCompile(`column .* must appear in the group by`)

func matchAggregation(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42803" {
		return true
	}
	if mysqlCodeIn(err, 1055, 1140) {
		return true
	}
	if containsAny(msg,
		"must appear in the group by clause",
		"aggregate functions are not allowed") {
		return true
	}
	return aggregationPattern.MatchString(msg)
}

var ambiguousColumnPattern = regexp.MustCompile(`column reference .* is ambiguous`)

func matchJoin(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42702" {
		return true
	}
	if mysqlCodeIn(err, 1052) {
		return true
	}
	if ambiguousColumnPattern.MatchString(msg) {
		return true
	}
	return containsAny(msg, "missing from-clause entry", "ambiguous column")
}

func matchTypeMismatch(err error, msg string) bool {
	if code, ok := pgCode(err); ok {
		if code == "42804" || code == "42883" || code == "22P02" {
			return true
		}
	}
	if mysqlCodeIn(err, 1366) {
		return true
	}
	return containsAny(msg,
		"cannot cast type",
		"invalid input syntax for type",
		"operator does not exist",
		"type mismatch")
}

func matchSyntax(err error, msg string) bool {
	if code, ok := pgCode(err); ok && code == "42601" {
		return true
	}
	if mysqlCodeIn(err, 1064) {
		return true
	}
	return containsAny(msg,
		"syntax error at or near",
		"syntax error",
		"invalid syntax")
}
