package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	Snapshot      SnapshotConfig
	AI            AIConfig
	Refresh       RefreshConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WarehouseConfig selects the analytical engine the service queries.
// Driver is a database/sql driver name; the binaries register both
// "duckdb" and "pgx".
type WarehouseConfig struct {
	Driver         string
	DSN            string
	SelectDatabase bool
}

// SnapshotConfig locates the persisted database-list and schema-snapshot
// documents. Backend "file" keeps them under Dir; "s3" keeps them as
// objects in a bucket.
type SnapshotConfig struct {
	Backend      string
	Dir          string
	DatabasesKey string
	SchemasKey   string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	S3Prefix     string
	S3AutoCreate bool
}

type AIConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	SQLTemperature     float64
	SQLMaxTokens       int
	InsightTemperature float64
	InsightMaxTokens   int
	Timeout            time.Duration
}

// RefreshConfig points at the out-of-process schema refresh tool.
type RefreshConfig struct {
	Command string
	Timeout time.Duration
}

// CacheConfig enables the optional Redis-backed translation cache.
// An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLSAGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLSAGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLSAGE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_WAREHOUSE_DSN", &cfg.Warehouse.DSN); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSAGE_WAREHOUSE_SELECT_DATABASE", &cfg.Warehouse.SelectDatabase); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_BACKEND", &cfg.Snapshot.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_DIR", &cfg.Snapshot.Dir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_DATABASES_KEY", &cfg.Snapshot.DatabasesKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_SCHEMAS_KEY", &cfg.Snapshot.SchemasKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_ENDPOINT", &cfg.Snapshot.S3Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_REGION", &cfg.Snapshot.S3Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_BUCKET", &cfg.Snapshot.S3Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_ACCESS_KEY", &cfg.Snapshot.S3AccessKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_SECRET_KEY", &cfg.Snapshot.S3SecretKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSAGE_SNAPSHOT_S3_USE_SSL", &cfg.Snapshot.S3UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_SNAPSHOT_S3_PREFIX", &cfg.Snapshot.S3Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSAGE_SNAPSHOT_S3_AUTO_CREATE_BUCKET", &cfg.Snapshot.S3AutoCreate); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLSAGE_AI_SQL_TEMPERATURE", &cfg.AI.SQLTemperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSAGE_AI_SQL_MAX_TOKENS", &cfg.AI.SQLMaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLSAGE_AI_INSIGHT_TEMPERATURE", &cfg.AI.InsightTemperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSAGE_AI_INSIGHT_MAX_TOKENS", &cfg.AI.InsightMaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_REFRESH_COMMAND", &cfg.Refresh.Command); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_REFRESH_TIMEOUT", &cfg.Refresh.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_CACHE_REDIS_PASSWORD", &cfg.Cache.RedisPassword); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLSAGE_CACHE_REDIS_DB", &cfg.Cache.RedisDB); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLSAGE_CACHE_TTL", &cfg.Cache.TTL); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSAGE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLSAGE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLSAGE_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLSAGE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Warehouse.Driver == "" {
		return Config{}, fmt.Errorf("warehouse driver is required")
	}
	switch cfg.Snapshot.Backend {
	case "file", "s3":
	default:
		return Config{}, fmt.Errorf("invalid SQLSAGE_SNAPSHOT_BACKEND: %q", cfg.Snapshot.Backend)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlsage-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:         "duckdb",
			DSN:            "sqlsage.db",
			SelectDatabase: true,
		},
		Snapshot: SnapshotConfig{
			Backend:      "file",
			Dir:          ".",
			DatabasesKey: "databases.json",
			SchemasKey:   "all_databases_schema.json",
			S3Region:     "us-east-1",
			S3AutoCreate: true,
		},
		AI: AIConfig{
			BaseURL:            "https://api.groq.com/openai",
			Model:              "llama-3.3-70b-versatile",
			SQLTemperature:     0,
			SQLMaxTokens:       200,
			InsightTemperature: 0.3,
			InsightMaxTokens:   300,
			Timeout:            30 * time.Second,
		},
		Refresh: RefreshConfig{
			Command: "sqlsage-refresh",
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Snapshot.S3UseSSL = true
		cfg.Snapshot.S3AutoCreate = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
