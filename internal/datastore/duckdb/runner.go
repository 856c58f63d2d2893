// Package duckdb runs analytics queries against an in-process DuckDB
// instance with the collection dataset exposed as a view over the source
// CSV file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/blueinsight/blueinsight/internal/datastore"
)

type Config struct {
	// DataPath is the CSV file backing the dataset view.
	DataPath string
	// Table is the view name queries reference. Defaults to "collections".
	Table string
}

type Runner struct {
	db *sql.DB
}

// Open starts an in-memory DuckDB instance and registers the dataset view.
func Open(ctx context.Context, cfg Config) (*Runner, error) {
	if strings.TrimSpace(cfg.DataPath) == "" {
		return nil, fmt.Errorf("data path is required")
	}
	if _, err := os.Stat(cfg.DataPath); err != nil {
		return nil, fmt.Errorf("stat data file %q: %w", cfg.DataPath, err)
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "collections"
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	viewSQL := fmt.Sprintf(
		`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_csv(%s, header = true)`,
		quoteIdent(table), quoteString(cfg.DataPath),
	)
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create view %q: %w", table, err)
	}
	return &Runner{db: db}, nil
}

func (r *Runner) Close() error {
	return r.db.Close()
}

// RunQuery executes the query once and materializes every row. Retries and
// row capping are the executor's job.
func (r *Runner) RunQuery(ctx context.Context, sqlText string) (datastore.ResultSet, error) {
	rows, err := r.db.QueryContext(ctx, sqlText)
	if err != nil {
		return datastore.ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return datastore.ResultSet{}, fmt.Errorf("query columns: %w", err)
	}

	records := make([]datastore.Record, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return datastore.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}

		record := make(datastore.Record, len(columns))
		for i, name := range columns {
			record[name] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return datastore.ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	return datastore.ResultSet{Columns: columns, Records: records}, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
