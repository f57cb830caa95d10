// Package warehouse executes sanitized SQL against the analytical
// store over database/sql.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlsage/sqlsage/internal/observability"
)

// Result is a fully materialized result set. Column order follows the
// query; row cells are JSON-safe values.
type Result struct {
	Columns []string
	Rows    [][]any
}

type Executor interface {
	Execute(ctx context.Context, database, sqlText string) (Result, error)
}

type Config struct {
	// Driver selects the registered database/sql driver, duckdb or pgx.
	Driver string
	DSN    string
	// SelectDatabase issues USE before the query for warehouses that
	// scope sessions to a database instead of honoring qualified names.
	SelectDatabase bool
}

// Connector opens a fresh connection per request, runs one statement,
// and closes the connection. Analyze traffic is low-volume and each
// request may target a different database, so there is no pool to
// poison with a leftover USE.
type Connector struct {
	cfg  Config
	open func(driver, dsn string) (*sql.DB, error)
}

func NewConnector(cfg Config) (*Connector, error) {
	switch cfg.Driver {
	case "duckdb", "pgx":
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" && cfg.Driver == "pgx" {
		return nil, fmt.Errorf("warehouse DSN is required for driver %q", cfg.Driver)
	}
	return &Connector{cfg: cfg, open: sql.Open}, nil
}

func (c *Connector) Execute(ctx context.Context, database, sqlText string) (Result, error) {
	start := time.Now()
	defer func() { observability.ObserveWarehouseQuery(time.Since(start)) }()

	db, err := c.open(c.cfg.Driver, c.cfg.DSN)
	if err != nil {
		return Result{}, fmt.Errorf("open warehouse connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	// USE scopes the session, so it and the query must share one
	// connection; the pool gives no such guarantee.
	conn, err := db.Conn(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire warehouse connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if c.cfg.SelectDatabase {
		if _, err := conn.ExecContext(ctx, "USE "+quoteIdentifier(database)); err != nil {
			return Result{}, fmt.Errorf("select database %q: %w", database, err)
		}
	}

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read result columns: %w", err)
	}

	result := Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		cells := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range cells {
			targets[i] = &cells[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Result{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, cell := range cells {
			cells[i] = normalizeCell(cell)
		}
		result.Rows = append(result.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate result rows: %w", err)
	}
	return result, nil
}

// normalizeCell maps driver byte slices to plain values. Exact numerics
// arrive as raw bytes from some drivers; those become float64, the rest
// become strings so JSON encoding never base64s a cell.
func normalizeCell(value any) any {
	raw, ok := value.([]byte)
	if !ok {
		return value
	}
	text := string(raw)
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}
