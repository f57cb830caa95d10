package nlsql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/observability"
)

// NoDataMessage is returned without a generation call when a query
// produced zero rows.
const NoDataMessage = "No data found for this query."

const insightPersona = "You're a data analyst. Provide concise, plain-language insights about the data. Do not restate the raw rows."

// Insights turns query results into a short prose summary via the
// generation service.
type Insights struct {
	Client      llm.Client
	Temperature float64
	MaxTokens   int
}

// Summarize renders the result set as column-keyed records and asks the
// generation service to describe them in the context of the original
// question. An empty result set short-circuits to NoDataMessage.
func (s *Insights) Summarize(ctx context.Context, question string, columns []string, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return NoDataMessage, nil
	}

	records, err := encodeRecords(columns, rows)
	if err != nil {
		return "", fmt.Errorf("encode result records: %w", err)
	}

	messages := []llm.Message{
		{Role: "system", Content: insightPersona},
		{Role: "user", Content: "User question: " + strings.TrimSpace(question)},
		{Role: "user", Content: "Query result data:\n" + string(records)},
	}

	start := time.Now()
	insight, err := s.Client.Complete(ctx, llm.Request{
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Messages:    messages,
	})
	observability.ObserveGeneration("insight", time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(insight), nil
}

// encodeRecords serializes rows as a JSON array of objects keyed by
// column name. Keys are emitted in result-set order; encoding a Go map
// would sort them alphabetically and lose the query's column order.
func encodeRecords(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, column := range columns {
			if j >= len(row) {
				break
			}
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(column)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(coerceCell(row[j]))
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// coerceCell formats values that have no natural JSON form. Cells
// arrive already normalized by the warehouse layer; only timestamps
// need flattening, to RFC3339.
func coerceCell(value any) any {
	if ts, ok := value.(time.Time); ok {
		return ts.Format(time.RFC3339)
	}
	return value
}
