package schema

import (
	"context"

	"github.com/pkg/errors"

	"sqlpilot/internal/db"
	"sqlpilot/internal/util"
)

// catalogQueries holds the information_schema queries for one dialect.
type catalogQueries struct {
	tables      string
	columns     string
	primaryKeys string
	foreignKeys string
}

var postgresQueries = catalogQueries{
	tables: `SELECT table_name
      FROM information_schema.tables
     WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
     ORDER BY table_name`,
	columns: `SELECT table_name, column_name, data_type
      FROM information_schema.columns
     WHERE table_schema = 'public'
     ORDER BY table_name, ordinal_position`,
	primaryKeys: `SELECT tc.table_name, kcu.column_name
      FROM information_schema.table_constraints tc
      JOIN information_schema.key_column_usage kcu
        ON kcu.constraint_name = tc.constraint_name
       AND kcu.table_schema = tc.table_schema
     WHERE tc.table_schema = 'public' AND tc.constraint_type = 'PRIMARY KEY'
     ORDER BY tc.table_name, kcu.ordinal_position`,
	foreignKeys: `SELECT tc.table_name, kcu.column_name,
           ccu.table_name AS ref_table, ccu.column_name AS ref_column
      FROM information_schema.table_constraints tc
      JOIN information_schema.key_column_usage kcu
        ON kcu.constraint_name = tc.constraint_name
       AND kcu.table_schema = tc.table_schema
      JOIN information_schema.constraint_column_usage ccu
        ON ccu.constraint_name = tc.constraint_name
       AND ccu.table_schema = tc.table_schema
     WHERE tc.table_schema = 'public' AND tc.constraint_type = 'FOREIGN KEY'
     ORDER BY tc.table_name, kcu.ordinal_position`,
}

var mysqlQueries = catalogQueries{
	tables: `SELECT table_name AS table_name
      FROM information_schema.tables
     WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
     ORDER BY table_name`,
	columns: `SELECT table_name AS table_name, column_name AS column_name,
           data_type AS data_type
      FROM information_schema.columns
     WHERE table_schema = DATABASE()
     ORDER BY table_name, ordinal_position`,
	primaryKeys: `SELECT table_name AS table_name, column_name AS column_name
      FROM information_schema.key_column_usage
     WHERE table_schema = DATABASE() AND constraint_name = 'PRIMARY'
     ORDER BY table_name, ordinal_position`,
	foreignKeys: `SELECT table_name AS table_name, column_name AS column_name,
           referenced_table_name AS ref_table, referenced_column_name AS ref_column
      FROM information_schema.key_column_usage
     WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL
     ORDER BY table_name, ordinal_position`,
}

type columnRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
	DataType   string `db:"data_type"`
}

type keyRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
}

type fkRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
	RefTable   string `db:"ref_table"`
	RefColumn  string `db:"ref_column"`
}

// Extract reads the current database's tables, columns, primary keys and
// foreign keys from information_schema and builds a Snapshot. Views are
// excluded; column order follows ordinal_position.
func Extract(ctx context.Context, conn *db.Conn) (*Snapshot, error) {
	queries := mysqlQueries
	if conn.Dialect == db.DialectPostgres {
		queries = postgresQueries
	}

	var names []string
	if err := conn.SelectContext(ctx, &names, queries.tables); err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	snap := &Snapshot{Tables: make([]Table, 0, len(names))}
	index := make(map[string]*Table, len(names))
	for _, name := range names {
		snap.Tables = append(snap.Tables, Table{Name: name})
	}
	for i := range snap.Tables {
		index[snap.Tables[i].Name] = &snap.Tables[i]
	}

	var cols []columnRow
	if err := conn.SelectContext(ctx, &cols, queries.columns); err != nil {
		return nil, errors.Wrap(err, "list columns")
	}
	for _, row := range cols {
		tbl, ok := index[row.TableName]
		if !ok {
			continue // view or table created mid-extraction
		}
		tbl.Columns = append(tbl.Columns, Column{Name: row.ColumnName, Type: row.DataType})
	}

	var pks []keyRow
	if err := conn.SelectContext(ctx, &pks, queries.primaryKeys); err != nil {
		return nil, errors.Wrap(err, "list primary keys")
	}
	for _, row := range pks {
		if tbl, ok := index[row.TableName]; ok {
			tbl.PrimaryKey = append(tbl.PrimaryKey, row.ColumnName)
		}
	}

	var fks []fkRow
	if err := conn.SelectContext(ctx, &fks, queries.foreignKeys); err != nil {
		return nil, errors.Wrap(err, "list foreign keys")
	}
	for _, row := range fks {
		if tbl, ok := index[row.TableName]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, ForeignKey{
				Column:    row.ColumnName,
				RefTable:  row.RefTable,
				RefColumn: row.RefColumn,
			})
		}
	}

	util.Infof("schema: extracted %d tables from %s catalog", len(snap.Tables), conn.Dialect)
	return snap, nil
}
