package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/nlsql"
	"github.com/sqlsage/sqlsage/internal/observability"
)

type analyzeRequest struct {
	Prompt   string `json:"prompt"`
	Database string `json:"database"`
}

type analyzeResponse struct {
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Insight string   `json:"insight"`
}

func handleAnalyze(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Database = strings.TrimSpace(req.Database)
	if req.Prompt == "" || req.Database == "" {
		observability.ObserveAnalyze("invalid_request")
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_INPUT", "missing prompt or database")
		return
	}

	relations, ok := deps.Schema.Database(req.Database)
	if !ok {
		observability.ObserveAnalyze("unknown_database")
		writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_DATABASE", "unknown database: "+req.Database)
		return
	}

	sqlText, err := deps.Translator.Translate(r.Context(), req.Prompt, req.Database, relations)
	if err != nil {
		// Rejections classify the generated SQL, not the caller's input.
		var validation *nlsql.ValidationError
		if errors.As(err, &validation) {
			observability.ObserveAnalyze("rejected")
			writeError(r.Context(), w, http.StatusInternalServerError, "INVALID_SQL", validation.Message)
			return
		}
		var upstream *llm.UpstreamError
		if errors.As(err, &upstream) {
			observability.ObserveAnalyze("generation_error")
			writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", upstream.Error())
			return
		}
		observability.ObserveAnalyze("generation_error")
		writeError(r.Context(), w, http.StatusInternalServerError, "GENERATION_FAILED", err.Error())
		return
	}

	result, err := deps.Executor.Execute(r.Context(), req.Database, sqlText)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "query execution failed",
				"database", req.Database, "sql", sqlText, "error", err)
		}
		observability.ObserveAnalyze("query_error")
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	insight, err := deps.Insights.Summarize(r.Context(), req.Prompt, result.Columns, result.Rows)
	if err != nil {
		var upstream *llm.UpstreamError
		status, code := http.StatusInternalServerError, "INSIGHT_FAILED"
		if errors.As(err, &upstream) {
			status = http.StatusBadGateway
		}
		observability.ObserveAnalyze("insight_error")
		writeError(r.Context(), w, status, code, err.Error())
		return
	}

	observability.ObserveAnalyze("ok")
	writeJSON(w, http.StatusOK, analyzeResponse{
		SQL:     sqlText,
		Columns: result.Columns,
		Rows:    result.Rows,
		Insight: insight,
	})
}
