// Package schema models the persisted warehouse schema snapshot and the
// in-memory catalog derived from it.
package schema

import (
	"sort"
)

// Column is one declared column of a table or view.
type Column struct {
	Name string `json:"column_name"`
	Type string `json:"type"`
}

// Relation is a table or view with its ordered column list.
type Relation struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// DatabaseSnapshot is the persisted per-database record. The snapshot
// document is a JSON array of these.
type DatabaseSnapshot struct {
	Database string     `json:"database"`
	Tables   []Relation `json:"tables"`
	Views    []Relation `json:"views"`
}

// TableSchema keeps the declared columns in snapshot order and answers
// type lookups by column name.
type TableSchema struct {
	Columns []Column
}

func (t TableSchema) ColumnType(name string) (string, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column.Type, true
		}
	}
	return "", false
}

// DatabaseSchema maps a table-or-view name to its schema.
type DatabaseSchema map[string]TableSchema

// RelationNames returns the relation names in sorted order, for
// deterministic prompt rendering.
func (d DatabaseSchema) RelationNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog maps database name to its relations.
type Catalog map[string]DatabaseSchema

// BuildCatalog flattens a snapshot into the lookup structure used per
// request. Tables and views of a database share one namespace; when a
// view shadows a table of the same name the view wins.
func BuildCatalog(snapshot []DatabaseSnapshot) Catalog {
	catalog := make(Catalog, len(snapshot))
	for _, db := range snapshot {
		relations := make(DatabaseSchema, len(db.Tables)+len(db.Views))
		for _, table := range db.Tables {
			relations[table.Name] = TableSchema{Columns: table.Columns}
		}
		for _, view := range db.Views {
			relations[view.Name] = TableSchema{Columns: view.Columns}
		}
		catalog[db.Database] = relations
	}
	return catalog
}
