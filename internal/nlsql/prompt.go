package nlsql

import (
	"fmt"
	"strings"

	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/schema"
)

// SQLGenerationMessages builds the chat exchange for translating a
// question into SQL. The system message enumerates every relation of
// the target database so the model never guesses at table names.
func SQLGenerationMessages(database string, relations schema.DatabaseSchema, question string) []llm.Message {
	var schemaInfo strings.Builder
	for _, name := range relations.RelationNames() {
		columns := relations[name].Columns
		parts := make([]string, 0, len(columns))
		for _, column := range columns {
			parts = append(parts, fmt.Sprintf("%s (%s)", column.Name, column.Type))
		}
		fmt.Fprintf(&schemaInfo, "%s: %s\n", name, strings.Join(parts, ", "))
	}

	system := fmt.Sprintf(
		"You are an expert SQL assistant. Use the following schema from database `%s`:\n%s"+
			"Do not use `information_schema` or any system schemas. Only query user tables.\n"+
			"Always generate a query for a table from the schema above.\n"+
			"Output valid SQL only, with no explanations and no markdown.",
		database, schemaInfo.String(),
	)

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: strings.TrimSpace(question)},
	}
}
