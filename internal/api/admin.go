package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type loadSchemaRequest struct {
	Database string `json:"database"`
}

func handleListDatabases(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"databases": deps.Schema.Databases()})
}

// handleLoadSchema re-extracts one database's schema via the refresh
// tool, then swaps the in-memory catalog.
func handleLoadSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req loadSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	req.Database = strings.TrimSpace(req.Database)
	if req.Database == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_INPUT", "missing database name")
		return
	}

	if err := deps.Refresh.Run(r.Context(), "schema", req.Database); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	count := deps.Schema.Reload(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "schema loaded",
		"database":  req.Database,
		"databases": count,
	})
}

// handleRefreshDatabases rebuilds the database list document, then
// reloads the catalog so the new names become visible.
func handleRefreshDatabases(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := deps.Refresh.Run(r.Context(), "databases"); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "REFRESH_FAILED", err.Error())
		return
	}
	deps.Schema.Reload(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "database list refreshed",
		"databases": deps.Schema.Databases(),
	})
}
