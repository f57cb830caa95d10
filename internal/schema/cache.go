package schema

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/storage"
)

// Loader reads the persisted snapshot documents. Any read or parse
// failure yields an empty result, never an error: a missing or corrupt
// snapshot degrades to "unknown database" responses downstream.
type Loader struct {
	Store        storage.ObjectStore
	DatabasesKey string
	SchemasKey   string
	Logger       *slog.Logger
}

func (l *Loader) LoadCatalog(ctx context.Context) Catalog {
	var snapshot []DatabaseSnapshot
	if err := l.readJSON(ctx, l.SchemasKey, &snapshot); err != nil {
		l.warn(ctx, "schema snapshot unavailable, starting with empty catalog", err)
		return Catalog{}
	}
	return BuildCatalog(snapshot)
}

func (l *Loader) LoadDatabases(ctx context.Context) []string {
	var databases []string
	if err := l.readJSON(ctx, l.DatabasesKey, &databases); err != nil {
		l.warn(ctx, "database list unavailable, starting with empty list", err)
		return nil
	}
	return databases
}

func (l *Loader) readJSON(ctx context.Context, key string, dst any) error {
	if l.Store == nil {
		return errors.New("snapshot store is not configured")
	}
	reader, err := l.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (l *Loader) warn(ctx context.Context, message string, err error) {
	if l.Logger == nil {
		return
	}
	l.Logger.WarnContext(ctx, message, slog.Any("error", err))
}

// Cache is the process-wide schema state. Readers get a consistent
// catalog pointer; Reload swaps the whole structure at once, so a
// concurrent reader sees either the old or the new catalog, never a
// mix.
type Cache struct {
	loader    *Loader
	catalog   atomic.Pointer[Catalog]
	databases atomic.Pointer[[]string]
}

func NewCache(loader *Loader) *Cache {
	cache := &Cache{loader: loader}
	empty := Catalog{}
	cache.catalog.Store(&empty)
	var noDatabases []string
	cache.databases.Store(&noDatabases)
	return cache
}

// Reload rebuilds the catalog and database list from the snapshot store
// and replaces both wholesale. Returns the number of databases in the
// new catalog.
func (c *Cache) Reload(ctx context.Context) int {
	catalog := c.loader.LoadCatalog(ctx)
	databases := c.loader.LoadDatabases(ctx)
	c.catalog.Store(&catalog)
	c.databases.Store(&databases)
	observability.SetSchemaCacheDatabases(len(catalog))
	return len(catalog)
}

// Database returns the relations of one database, or false when the
// database is not in the loaded snapshot.
func (c *Cache) Database(name string) (DatabaseSchema, bool) {
	catalog := *c.catalog.Load()
	relations, ok := catalog[name]
	return relations, ok
}

// Databases returns the persisted database list merged with every
// database present in the catalog, sorted.
func (c *Cache) Databases() []string {
	seen := map[string]bool{}
	var names []string
	for _, name := range *c.databases.Load() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range *c.catalog.Load() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Cache) Size() int {
	return len(*c.catalog.Load())
}
