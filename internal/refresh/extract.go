// Package refresh rebuilds the snapshot documents from warehouse
// metadata and runs the refresh binary as a subprocess from the API.
package refresh

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/schema"
	"github.com/sqlsage/sqlsage/internal/storage"
)

// Extractor walks the warehouse metadata commands and writes the two
// snapshot documents: the database list and the full schema catalog.
type Extractor struct {
	Driver       string
	DSN          string
	Store        storage.ObjectStore
	DatabasesKey string
	SchemasKey   string
	Logger       *slog.Logger

	// open is swapped in tests.
	open func(driver, dsn string) (*sql.DB, error)
}

// RefreshDatabases queries SHOW DATABASES and rewrites the database
// list document.
func (e *Extractor) RefreshDatabases(ctx context.Context) (names []string, err error) {
	defer func() { observability.ObserveSchemaRefresh("databases", err) }()

	conn, cleanup, err := e.openConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	names, err = e.fetchDatabases(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err = e.putJSON(ctx, e.DatabasesKey, names); err != nil {
		return nil, err
	}
	e.Logger.Info("database list refreshed", "key", e.DatabasesKey, "databases", len(names))
	return names, nil
}

// RefreshSchemas extracts tables and views for the given databases and
// updates the schema snapshot document. With no names it covers every
// database SHOW DATABASES reports and rewrites the document; with
// explicit names it merges into the existing document so refreshing one
// database never drops the others. A database that fails extraction is
// logged and skipped.
func (e *Extractor) RefreshSchemas(ctx context.Context, names ...string) (count int, err error) {
	defer func() { observability.ObserveSchemaRefresh("schemas", err) }()

	conn, cleanup, err := e.openConn(ctx)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	var existing []schema.DatabaseSnapshot
	if len(names) == 0 {
		names, err = e.fetchDatabases(ctx, conn)
		if err != nil {
			return 0, err
		}
	} else {
		existing = e.readSnapshots(ctx)
	}

	extracted := make([]schema.DatabaseSnapshot, 0, len(names))
	for _, name := range names {
		snapshot, extractErr := e.extractDatabase(ctx, conn, name)
		if extractErr != nil {
			e.Logger.Warn("schema extraction failed, skipping database", "database", name, "error", extractErr)
			continue
		}
		extracted = append(extracted, snapshot)
	}

	snapshots := mergeSnapshots(existing, extracted)
	if err = e.putJSON(ctx, e.SchemasKey, snapshots); err != nil {
		return 0, err
	}
	e.Logger.Info("schema snapshot refreshed", "key", e.SchemasKey,
		"extracted", len(extracted), "databases", len(snapshots))
	return len(extracted), nil
}

// readSnapshots returns the current snapshot document, or nothing when
// it is absent or unreadable.
func (e *Extractor) readSnapshots(ctx context.Context) []schema.DatabaseSnapshot {
	reader, err := e.Store.Get(ctx, e.SchemasKey)
	if err != nil {
		return nil
	}
	defer func() { _ = reader.Close() }()

	var snapshots []schema.DatabaseSnapshot
	if err := json.NewDecoder(reader).Decode(&snapshots); err != nil {
		e.Logger.Warn("existing schema snapshot unreadable, replacing it", "key", e.SchemasKey, "error", err)
		return nil
	}
	return snapshots
}

// mergeSnapshots replaces entries for freshly extracted databases and
// keeps the rest, preserving document order for kept entries.
func mergeSnapshots(existing, extracted []schema.DatabaseSnapshot) []schema.DatabaseSnapshot {
	replaced := make(map[string]bool, len(extracted))
	for _, snapshot := range extracted {
		replaced[snapshot.Database] = true
	}
	merged := make([]schema.DatabaseSnapshot, 0, len(existing)+len(extracted))
	for _, snapshot := range existing {
		if !replaced[snapshot.Database] {
			merged = append(merged, snapshot)
		}
	}
	return append(merged, extracted...)
}

func (e *Extractor) extractDatabase(ctx context.Context, conn *sql.Conn, name string) (schema.DatabaseSnapshot, error) {
	if _, err := conn.ExecContext(ctx, "USE "+quoteIdentifier(name)); err != nil {
		return schema.DatabaseSnapshot{}, fmt.Errorf("use database: %w", err)
	}

	tables, err := e.listRelations(ctx, conn, "SHOW TABLES")
	if err != nil {
		return schema.DatabaseSnapshot{}, err
	}
	views, err := e.listRelations(ctx, conn, "SHOW VIEWS")
	if err != nil {
		return schema.DatabaseSnapshot{}, err
	}

	snapshot := schema.DatabaseSnapshot{Database: name, Tables: []schema.Relation{}, Views: []schema.Relation{}}
	for _, table := range tables {
		columns, err := e.describeRelation(ctx, conn, table)
		if err != nil {
			return schema.DatabaseSnapshot{}, err
		}
		snapshot.Tables = append(snapshot.Tables, schema.Relation{Name: table, Columns: columns})
	}
	for _, view := range views {
		columns, err := e.describeRelation(ctx, conn, view)
		if err != nil {
			return schema.DatabaseSnapshot{}, err
		}
		snapshot.Views = append(snapshot.Views, schema.Relation{Name: view, Columns: columns})
	}
	return snapshot, nil
}

func (e *Extractor) fetchDatabases(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := e.queryStrings(ctx, conn, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			names = append(names, row[0])
		}
	}
	return names, nil
}

// listRelations reads relation names from a SHOW statement. The
// warehouse reports the name in the second column (the first is the
// owning database); single-column output is accepted as-is.
func (e *Extractor) listRelations(ctx context.Context, conn *sql.Conn, statement string) ([]string, error) {
	rows, err := e.queryStrings(ctx, conn, statement)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name := ""
		switch {
		case len(row) > 1:
			name = row[1]
		case len(row) == 1:
			name = row[0]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// describeRelation reads DESCRIBE TABLE output, dropping repeated
// header rows, section markers, and rows missing a name or type.
func (e *Extractor) describeRelation(ctx context.Context, conn *sql.Conn, name string) ([]schema.Column, error) {
	rows, err := e.queryStrings(ctx, conn, "DESCRIBE TABLE "+quoteIdentifier(name))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	columns := make([]schema.Column, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		columnName, columnType := row[0], row[1]
		if columnName == "" || columnType == "" {
			continue
		}
		if strings.EqualFold(columnName, "col_name") || strings.HasPrefix(columnName, "#") {
			continue
		}
		columns = append(columns, schema.Column{Name: columnName, Type: columnType})
	}
	return columns, nil
}

// queryStrings materializes every cell of a metadata query as a string.
func (e *Extractor) queryStrings(ctx context.Context, conn *sql.Conn, statement string) ([][]string, error) {
	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", statement, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]string
	for rows.Next() {
		cells := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range cells {
			targets[i] = &cells[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		record := make([]string, len(columns))
		for i, cell := range cells {
			switch v := cell.(type) {
			case nil:
			case []byte:
				record[i] = string(v)
			case string:
				record[i] = v
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (e *Extractor) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = e.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// openConn pins a single connection for the whole run; USE scopes the
// session, so the metadata commands must not hop across the pool.
func (e *Extractor) openConn(ctx context.Context) (*sql.Conn, func(), error) {
	open := e.open
	if open == nil {
		open = sql.Open
	}
	db, err := open(e.Driver, e.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open warehouse connection: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("acquire warehouse connection: %w", err)
	}
	cleanup := func() {
		_ = conn.Close()
		_ = db.Close()
	}
	return conn, cleanup, nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "") + "`"
}
