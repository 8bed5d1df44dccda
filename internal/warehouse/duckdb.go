// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"sort"
	"strings"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/innkeeper/internal/catalog"
	"github.com/tomtom215/innkeeper/internal/logging"
)

// Config configures the DuckDB executor.
type Config struct {
	// Path is the database file; ":memory:" or empty opens an in-memory
	// database.
	Path      string
	Threads   int
	MaxMemory string
	// MaxOpenConns defaults to the number of CPUs.
	MaxOpenConns int
}

// DuckDB executes statements through database/sql.
type DuckDB struct {
	conn *sql.DB
}

// Open opens a DuckDB database.
func Open(cfg Config) (*DuckDB, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Disable auto-install/auto-load so startup never reaches the network.
	connStr := fmt.Sprintf("%s?threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	logging.Info().Str("path", path).Int("threads", threads).Msg("Warehouse opened")
	return &DuckDB{conn: conn}, nil
}

// NewDuckDB wraps an existing connection pool.
func NewDuckDB(conn *sql.DB) *DuckDB {
	return &DuckDB{conn: conn}
}

// Query runs query and collects every row.
func (d *DuckDB) Query(ctx context.Context, query string, args ...interface{}) (*ResultSet, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	rs := &ResultSet{Columns: cols, Rows: []map[string]interface{}{}}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = normalize(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return rs, nil
}

// Exec runs a statement that returns no rows.
func (d *DuckDB) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	if _, err := d.conn.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (d *DuckDB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (d *DuckDB) Close() error {
	return d.conn.Close()
}

// Bootstrap creates an empty table for every catalog model that does not
// exist yet, so a fresh database can serve queries.
func (d *DuckDB) Bootstrap(ctx context.Context, cat *catalog.Catalog) error {
	for _, id := range cat.ModelIDs() {
		m, _ := cat.Model(id)

		names := make([]string, 0, len(m.Fields))
		for name := range m.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		cols := make([]string, len(names))
		for i, name := range names {
			f := m.Fields[name]
			cols[i] = quoteIdent(f.Column) + " " + sqlType(f.Type)
		}
		stmt := "CREATE TABLE IF NOT EXISTS " + quoteIdent(m.Table) + " (" + strings.Join(cols, ", ") + ")"
		if err := d.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap %s: %w", id, err)
		}
	}
	return nil
}

func sqlType(t catalog.FieldType) string {
	switch t {
	case catalog.TypeNumber:
		return "DOUBLE"
	case catalog.TypeTimestamp:
		return "TIMESTAMP"
	case catalog.TypeBoolean:
		return "BOOLEAN"
	}
	return "VARCHAR"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// normalize converts driver-specific values into plain Go values the
// post-processing and JSON layers understand.
func normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case *big.Int:
		if n == nil {
			return nil
		}
		if n.IsInt64() {
			return n.Int64()
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	case duckdb.Decimal:
		return n.Float64()
	case time.Time:
		return n.UTC()
	}
	return v
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // best-effort cleanup
	}
}
