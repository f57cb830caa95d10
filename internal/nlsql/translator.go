// Package nlsql translates natural-language questions into sanitized,
// database-qualified SQL and summarizes result sets as prose.
package nlsql

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/observability"
	"github.com/sqlsage/sqlsage/internal/schema"
)

// SQLCache memoizes sanitized SQL per (database, question) pair. A nil
// cache disables memoization; misses and errors are treated alike.
type SQLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Translator drives one question through generation and sanitization.
type Translator struct {
	Client      llm.Client
	Cache       SQLCache
	Temperature float64
	MaxTokens   int
}

// Translate returns an executable statement for the question, scoped to
// the given database. Only sanitized output is cached, so a cache hit
// never bypasses validation.
func (t *Translator) Translate(ctx context.Context, question, database string, relations schema.DatabaseSchema) (string, error) {
	key := cacheKey(database, question)
	if t.Cache != nil {
		if cached, ok := t.Cache.Get(ctx, key); ok {
			observability.ObserveTranslationCache(true)
			return cached, nil
		}
		observability.ObserveTranslationCache(false)
	}

	start := time.Now()
	raw, err := t.Client.Complete(ctx, llm.Request{
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
		Messages:    SQLGenerationMessages(database, relations, question),
	})
	observability.ObserveGeneration("sql", time.Since(start))
	if err != nil {
		return "", err
	}

	sqlText, err := Sanitize(raw, database)
	if err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) {
			observability.IncrementSanitizerRejection()
		}
		return "", err
	}

	if t.Cache != nil {
		t.Cache.Set(ctx, key, sqlText)
	}
	return sqlText, nil
}

func cacheKey(database, question string) string {
	sum := sha256.Sum256([]byte(database + "\x00" + strings.TrimSpace(question)))
	return "nlsql:" + hex.EncodeToString(sum[:])
}
