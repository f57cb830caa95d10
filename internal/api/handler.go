// Package api exposes the HTTP surface: analyze, snapshot refresh, and
// the usual health, readiness, and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/schema"
	"github.com/sqlsage/sqlsage/internal/warehouse"
)

type ReadinessCheck func(ctx context.Context) error

// SchemaCatalog is the read/reload surface of the in-memory snapshot
// cache.
type SchemaCatalog interface {
	Database(name string) (schema.DatabaseSchema, bool)
	Databases() []string
	Reload(ctx context.Context) int
}

type Translator interface {
	Translate(ctx context.Context, question, database string, relations schema.DatabaseSchema) (string, error)
}

type InsightSummarizer interface {
	Summarize(ctx context.Context, question string, columns []string, rows [][]any) (string, error)
}

// RefreshRunner invokes the out-of-process snapshot refresh tool.
type RefreshRunner interface {
	Run(ctx context.Context, args ...string) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Schema            SchemaCatalog
	Translator        Translator
	Executor          warehouse.Executor
	Insights          InsightSummarizer
	Refresh           RefreshRunner
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/databases", func(w http.ResponseWriter, r *http.Request) {
		handleListDatabases(deps, w, r)
	})
	protected.HandleFunc("POST /v1/analyze", func(w http.ResponseWriter, r *http.Request) {
		handleAnalyze(deps, w, r)
	})
	protected.HandleFunc("POST /v1/load_schema", func(w http.ResponseWriter, r *http.Request) {
		handleLoadSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/refresh_databases", func(w http.ResponseWriter, r *http.Request) {
		handleRefreshDatabases(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration")
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/databases", protectedHandler)
	mux.Handle("POST /v1/analyze", protectedHandler)
	mux.Handle("POST /v1/load_schema", protectedHandler)
	mux.Handle("POST /v1/refresh_databases", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckAIConfig fails readiness until the generation service credentials
// are configured.
func CheckAIConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("generation service api key is not configured")
		}
		return nil
	}
}

func CheckSnapshotConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Snapshot.Backend == "s3" && cfg.Snapshot.S3Bucket == "" {
			return errors.New("snapshot bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":      message,
		"error_code": code,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
