// Package schema models the database schema handed to generation and
// validation. A Snapshot is resolved once per correction session and treated
// as read-only afterwards.
package schema

import (
	"fmt"
	"strings"
)

// Column is a named, typed table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Table describes one table: columns in declaration order, primary key
// columns, and outgoing foreign keys.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Snapshot is the schema view for one session. Tables keep extraction order
// so rendered prompt text stays deterministic.
type Snapshot struct {
	Tables []Table `json:"tables"`
}

// Table returns the table with the given name, matched case-insensitively.
func (s *Snapshot) Table(name string) (Table, bool) {
	for _, tbl := range s.Tables {
		if strings.EqualFold(tbl.Name, name) {
			return tbl, true
		}
	}
	return Table{}, false
}

// HasTable reports whether a table with the given name exists.
func (s *Snapshot) HasTable(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// TableNames returns all table names in snapshot order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, tbl := range s.Tables {
		names = append(names, tbl.Name)
	}
	return names
}

// Column returns the column with the given name, matched case-insensitively.
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table declares the given column.
func (t Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the table's column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// FormatText renders the snapshot as the plain-text block embedded in
// generation prompts:
//
//	Table: orders
//	Columns: order_id (integer), user_id (integer)
//	Primary Key: order_id
//	Foreign Keys: user_id -> users.user_id
func (s *Snapshot) FormatText() string {
	if len(s.Tables) == 0 {
		return "No tables found in schema."
	}
	lines := make([]string, 0, len(s.Tables)*5)
	for _, tbl := range s.Tables {
		lines = append(lines, "Table: "+tbl.Name)
		if len(tbl.Columns) > 0 {
			cols := make([]string, 0, len(tbl.Columns))
			for _, col := range tbl.Columns {
				cols = append(cols, fmt.Sprintf("%s (%s)", col.Name, col.Type))
			}
			lines = append(lines, "Columns: "+strings.Join(cols, ", "))
		}
		if len(tbl.PrimaryKey) > 0 {
			lines = append(lines, "Primary Key: "+strings.Join(tbl.PrimaryKey, ", "))
		}
		if len(tbl.ForeignKeys) > 0 {
			fks := make([]string, 0, len(tbl.ForeignKeys))
			for _, fk := range tbl.ForeignKeys {
				fks = append(fks, fmt.Sprintf("%s -> %s.%s", fk.Column, fk.RefTable, fk.RefColumn))
			}
			lines = append(lines, "Foreign Keys: "+strings.Join(fks, ", "))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Summary renders a table inventory for startup logging.
func (s *Snapshot) Summary() string {
	totalCols := 0
	for _, tbl := range s.Tables {
		totalCols += len(tbl.Columns)
	}
	var b strings.Builder
	b.WriteString("Database Summary:\n")
	fmt.Fprintf(&b, "Total Tables: %d\n", len(s.Tables))
	fmt.Fprintf(&b, "Total Columns: %d\n\n", totalCols)
	b.WriteString("Tables:\n")
	for _, tbl := range s.Tables {
		fmt.Fprintf(&b, "  - %s (%d columns)\n", tbl.Name, len(tbl.Columns))
	}
	return b.String()
}
