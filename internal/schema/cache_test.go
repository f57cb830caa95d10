package schema

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sqlsage/sqlsage/internal/storage"
)

type memoryStore struct {
	objects map[string]string
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = string(data)
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

const snapshotDoc = `[
  {
    "database": "sales_db",
    "tables": [
      {"name": "orders", "columns": [{"column_name": "id", "type": "bigint"}, {"column_name": "amount", "type": "decimal(10,2)"}]}
    ],
    "views": []
  }
]`

func newTestLoader(objects map[string]string) *Loader {
	return &Loader{
		Store:        &memoryStore{objects: objects},
		DatabasesKey: "databases.json",
		SchemasKey:   "all_databases_schema.json",
	}
}

func TestCacheReloadBuildsCatalog(t *testing.T) {
	cache := NewCache(newTestLoader(map[string]string{
		"databases.json":            `["sales_db", "hr_db"]`,
		"all_databases_schema.json": snapshotDoc,
	}))

	if cache.Size() != 0 {
		t.Fatalf("fresh cache size = %d", cache.Size())
	}
	if count := cache.Reload(context.Background()); count != 1 {
		t.Fatalf("Reload() = %d", count)
	}

	relations, ok := cache.Database("sales_db")
	if !ok {
		t.Fatal("sales_db should be present")
	}
	if _, ok := relations["orders"]; !ok {
		t.Fatal("orders should be present")
	}
	if _, ok := cache.Database("unknown_db"); ok {
		t.Fatal("unknown database should not resolve")
	}
}

func TestCacheLoadFailureYieldsEmptyCatalog(t *testing.T) {
	cache := NewCache(newTestLoader(map[string]string{
		"all_databases_schema.json": `{not json`,
	}))

	if count := cache.Reload(context.Background()); count != 0 {
		t.Fatalf("Reload() = %d", count)
	}
	if _, ok := cache.Database("sales_db"); ok {
		t.Fatal("corrupt snapshot should yield empty catalog")
	}
}

func TestCacheDatabasesMergesListAndCatalog(t *testing.T) {
	cache := NewCache(newTestLoader(map[string]string{
		"databases.json":            `["hr_db", "sales_db"]`,
		"all_databases_schema.json": snapshotDoc,
	}))
	cache.Reload(context.Background())

	got := cache.Databases()
	if len(got) != 2 || got[0] != "hr_db" || got[1] != "sales_db" {
		t.Fatalf("Databases() = %v", got)
	}
}

func TestCacheReloadReplacesWholesale(t *testing.T) {
	store := &memoryStore{objects: map[string]string{
		"all_databases_schema.json": snapshotDoc,
	}}
	cache := NewCache(&Loader{Store: store, DatabasesKey: "databases.json", SchemasKey: "all_databases_schema.json"})
	cache.Reload(context.Background())

	store.objects["all_databases_schema.json"] = `[{"database": "hr_db", "tables": [], "views": []}]`
	cache.Reload(context.Background())

	if _, ok := cache.Database("sales_db"); ok {
		t.Fatal("old catalog entry survived the swap")
	}
	if _, ok := cache.Database("hr_db"); !ok {
		t.Fatal("new catalog entry missing")
	}
}
