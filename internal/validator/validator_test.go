package validator

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"sqlpilot/internal/config"
	"sqlpilot/internal/schema"
)

func newTestValidator() *Validator {
	return New(config.ValidatorConfig{
		ConfidenceThreshold: 0.7,
		StructuralPenalty:   0.6,
		ExistencePenalty:    0.4,
		PlausibilityPenalty: 0.2,
	})
}

func testSnapshot() *schema.Snapshot {
	return &schema.Snapshot{Tables: []schema.Table{
		{
			Name: "products",
			Columns: []schema.Column{
				{Name: "product_id", Type: "integer"},
				{Name: "category_id", Type: "integer"},
				{Name: "name", Type: "character varying"},
				{Name: "price", Type: "numeric"},
			},
			PrimaryKey: []string{"product_id"},
		},
		{
			Name: "orders",
			Columns: []schema.Column{
				{Name: "order_id", Type: "integer"},
				{Name: "customer_id", Type: "integer"},
				{Name: "total", Type: "numeric"},
			},
			PrimaryKey: []string{"order_id"},
		},
	}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestValidSimpleQuery(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("SELECT product_id, name FROM products LIMIT 1000", testSnapshot())
	if !verdict.IsValid {
		t.Fatalf("expected valid, got %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 1.0) {
		t.Fatalf("confidence = %v, want 1.0", verdict.Confidence)
	}
	if len(verdict.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", verdict.Issues)
	}
}

func TestColumnHallucination(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("SELECT id FROM products", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid, got %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 0.6) {
		t.Fatalf("confidence = %v, want 0.6", verdict.Confidence)
	}
	if len(verdict.Issues) != 1 {
		t.Fatalf("issues = %v, want exactly one", verdict.Issues)
	}
	if !strings.Contains(verdict.Issues[0], "'id'") || !strings.Contains(verdict.Issues[0], "'products'") {
		t.Fatalf("issue does not name column and table: %q", verdict.Issues[0])
	}
}

func TestTableHallucination(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("SELECT * FROM invoices", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid, got %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 0.6) {
		t.Fatalf("confidence = %v, want 0.6", verdict.Confidence)
	}
	if !strings.Contains(verdict.Issues[0], "'invoices'") {
		t.Fatalf("issue does not name table: %q", verdict.Issues[0])
	}
}

func TestMutatingStatementZeroConfidence(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("DELETE FROM products WHERE price > 1000", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid, got %v", verdict)
	}
	if verdict.Confidence != 0 {
		t.Fatalf("confidence = %v, want exactly 0", verdict.Confidence)
	}
	if len(verdict.Issues) < 2 {
		t.Fatalf("issues = %v, want structural and safety issues", verdict.Issues)
	}
}

func TestMutatingKeywordAlwaysZero(t *testing.T) {
	v := newTestValidator()
	for _, sql := range []string{
		"DROP TABLE products",
		"INSERT INTO products VALUES (1)",
		"SELECT name FROM products; UPDATE products SET price = 0",
		"TRUNCATE products",
	} {
		verdict := v.Validate(sql, testSnapshot())
		if verdict.Confidence != 0 {
			t.Fatalf("Validate(%q) confidence = %v, want exactly 0", sql, verdict.Confidence)
		}
		if verdict.IsValid {
			t.Fatalf("Validate(%q) valid, want invalid", sql)
		}
	}
}

func TestMutatingKeywordWordBoundary(t *testing.T) {
	v := newTestValidator()
	snap := &schema.Snapshot{Tables: []schema.Table{{
		Name: "events",
		Columns: []schema.Column{
			{Name: "event_id", Type: "integer"},
			{Name: "created_at", Type: "timestamp"},
			{Name: "updated_by", Type: "integer"},
		},
	}}}
	verdict := v.Validate("SELECT event_id, created_at, updated_by FROM events", snap)
	if !verdict.IsValid {
		t.Fatalf("created_at/updated_by tripped the safety layer: %v", verdict.Issues)
	}
	if !almostEqual(verdict.Confidence, 1.0) {
		t.Fatalf("confidence = %v, want 1.0", verdict.Confidence)
	}
}

func TestAggregationBoundaryStaysValid(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("SELECT category_id, COUNT(*) FROM products", testSnapshot())
	if !verdict.IsValid {
		t.Fatalf("single plausibility warning must not block execution: %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 0.8) {
		t.Fatalf("confidence = %v, want 0.8", verdict.Confidence)
	}
	if len(verdict.Issues) != 1 || !strings.Contains(verdict.Issues[0], "GROUP BY") {
		t.Fatalf("issues = %v, want one GROUP BY warning", verdict.Issues)
	}
}

func TestSubqueryWithoutJoinWarns(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate(
		"SELECT name FROM products WHERE product_id IN (SELECT customer_id FROM orders)",
		testSnapshot())
	if !verdict.IsValid {
		t.Fatalf("expected valid with warning, got %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 0.8) {
		t.Fatalf("confidence = %v, want 0.8", verdict.Confidence)
	}
	if len(verdict.Issues) != 1 || !strings.Contains(verdict.Issues[0], "JOIN") {
		t.Fatalf("issues = %v, want cartesian product warning", verdict.Issues)
	}
}

func TestAliasResolution(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate(
		"SELECT p.name FROM products p JOIN orders o ON p.product_id = o.customer_id",
		testSnapshot())
	if !verdict.IsValid {
		t.Fatalf("aliased join should be valid, got %v", verdict)
	}

	verdict = v.Validate("SELECT p.sku FROM products AS p", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid for missing aliased column, got %v", verdict)
	}
	if !strings.Contains(verdict.Issues[0], "'sku'") || !strings.Contains(verdict.Issues[0], "'products'") {
		t.Fatalf("alias not resolved in issue: %q", verdict.Issues[0])
	}
}

func TestFunctionArgumentChecked(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate(
		"SELECT DATE_TRUNC('month', order_date) AS month FROM orders",
		testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid for missing function argument column, got %v", verdict)
	}
	found := false
	for _, issue := range verdict.Issues {
		if strings.Contains(issue, "'order_date'") {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues %v do not name order_date", verdict.Issues)
	}
}

func TestCTEExemptFromExistence(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate(
		"WITH recent AS (SELECT order_id FROM orders) SELECT * FROM recent",
		testSnapshot())
	for _, issue := range verdict.Issues {
		if strings.Contains(issue, "'recent'") {
			t.Fatalf("CTE flagged against schema: %q", issue)
		}
	}
	// Two extracted sources without a JOIN keyword still warn.
	if !almostEqual(verdict.Confidence, 0.8) {
		t.Fatalf("confidence = %v, want 0.8", verdict.Confidence)
	}
	if !verdict.IsValid {
		t.Fatalf("expected valid, got %v", verdict)
	}
}

func TestEmptyAndMalformedQueries(t *testing.T) {
	v := newTestValidator()
	cases := []struct {
		sql  string
		want string
	}{
		{"", "Empty SQL query"},
		{"   \n\t", "Empty SQL query"},
		{"EXPLAIN SELECT 1", "SQL must start with SELECT or WITH"},
		{"SELECT COUNT( FROM products", "Unmatched parentheses"},
	}
	for _, tc := range cases {
		verdict := v.Validate(tc.sql, testSnapshot())
		if verdict.IsValid {
			t.Fatalf("Validate(%q) valid, want invalid", tc.sql)
		}
		if !almostEqual(verdict.Confidence, 0.4) {
			t.Fatalf("Validate(%q) confidence = %v, want 0.4", tc.sql, verdict.Confidence)
		}
		found := false
		for _, issue := range verdict.Issues {
			if issue == tc.want {
				found = true
			}
		}
		if !found {
			t.Fatalf("Validate(%q) issues = %v, want %q", tc.sql, verdict.Issues, tc.want)
		}
	}
}

func TestNoSchemaProvided(t *testing.T) {
	v := newTestValidator()
	verdict := v.Validate("SELECT product_id FROM products", &schema.Snapshot{})
	if verdict.IsValid {
		t.Fatalf("expected invalid without schema, got %v", verdict)
	}
	if !almostEqual(verdict.Confidence, 0.6) {
		t.Fatalf("confidence = %v, want 0.6", verdict.Confidence)
	}
	if verdict.Issues[0] != "No schema provided for validation" {
		t.Fatalf("issue = %q", verdict.Issues[0])
	}
}

func TestPenaltiesStack(t *testing.T) {
	v := newTestValidator()
	// Missing table and missing qualified column on a known table.
	verdict := v.Validate("SELECT products.sku, i.total FROM products JOIN invoices i ON products.product_id = i.product_id", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("expected invalid, got %v", verdict)
	}
	// invoices missing (-0.4) and products.sku missing (-0.4).
	if verdict.Confidence > 0.21 {
		t.Fatalf("confidence = %v, want stacked penalties at or below 0.2", verdict.Confidence)
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := newTestValidator()
	snap := testSnapshot()
	sql := "SELECT p.name FROM products p JOIN orders o ON p.product_id = o.customer_id WHERE o.total > 10"
	first := v.Validate(sql, snap)
	second := v.Validate(sql, snap)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("verdicts differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestThresholdFromConfig(t *testing.T) {
	strict := New(config.ValidatorConfig{
		ConfidenceThreshold: 0.9,
		StructuralPenalty:   0.6,
		ExistencePenalty:    0.4,
		PlausibilityPenalty: 0.2,
	})
	verdict := strict.Validate("SELECT category_id, COUNT(*) FROM products", testSnapshot())
	if verdict.IsValid {
		t.Fatalf("0.8 must fail a 0.9 threshold, got %v", verdict)
	}
}
