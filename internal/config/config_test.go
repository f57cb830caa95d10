package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("sqlsage-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if cfg.Warehouse.Driver != "duckdb" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if !cfg.Warehouse.SelectDatabase {
		t.Fatal("SelectDatabase should default to true")
	}
	if cfg.AI.SQLTemperature != 0 {
		t.Fatalf("SQLTemperature = %v", cfg.AI.SQLTemperature)
	}
	if cfg.AI.SQLMaxTokens != 200 {
		t.Fatalf("SQLMaxTokens = %d", cfg.AI.SQLMaxTokens)
	}
	if cfg.AI.InsightTemperature != 0.3 {
		t.Fatalf("InsightTemperature = %v", cfg.AI.InsightTemperature)
	}
	if cfg.Snapshot.Backend != "file" {
		t.Fatalf("Snapshot.Backend = %q", cfg.Snapshot.Backend)
	}
	if cfg.Snapshot.DatabasesKey != "databases.json" {
		t.Fatalf("DatabasesKey = %q", cfg.Snapshot.DatabasesKey)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load("sqlsage-api", mapLookup(map[string]string{
		"SQLSAGE_PROFILE":              "prod",
		"SQLSAGE_HTTP_ADDR":            ":9090",
		"SQLSAGE_WAREHOUSE_DRIVER":     "pgx",
		"SQLSAGE_WAREHOUSE_DSN":        "postgres://wh:wh@localhost:5432/wh",
		"SQLSAGE_SNAPSHOT_BACKEND":     "s3",
		"SQLSAGE_SNAPSHOT_S3_BUCKET":   "snapshots",
		"SQLSAGE_AI_SQL_MAX_TOKENS":    "512",
		"SQLSAGE_AI_TIMEOUT":           "45s",
		"SQLSAGE_CACHE_REDIS_ADDR":     "localhost:6379",
		"SQLSAGE_LOG_LEVEL":            "info",
		"SQLSAGE_AUTH_STATIC_KEYS":     "key1:analyst",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if !cfg.Auth.Required {
		t.Fatal("prod profile should require auth")
	}
	if cfg.Warehouse.Driver != "pgx" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Snapshot.Backend != "s3" {
		t.Fatalf("Snapshot.Backend = %q", cfg.Snapshot.Backend)
	}
	if cfg.AI.SQLMaxTokens != 512 {
		t.Fatalf("SQLMaxTokens = %d", cfg.AI.SQLMaxTokens)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", cfg.Cache.RedisAddr)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	if _, err := Load("sqlsage-api", mapLookup(map[string]string{"SQLSAGE_PROFILE": "staging"})); err == nil {
		t.Fatal("expected error for invalid profile")
	}
}

func TestLoadRejectsInvalidSnapshotBackend(t *testing.T) {
	if _, err := Load("sqlsage-api", mapLookup(map[string]string{"SQLSAGE_SNAPSHOT_BACKEND": "gcs"})); err == nil {
		t.Fatal("expected error for invalid snapshot backend")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	if _, err := Load("sqlsage-api", mapLookup(map[string]string{"SQLSAGE_AI_TIMEOUT": "soon"})); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
