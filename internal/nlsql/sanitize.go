package nlsql

import (
	"regexp"
	"strings"
)

// placeholderDatabase is the literal the model sometimes emits instead
// of the real target database name.
const placeholderDatabase = "'your_database_name'"

// leadingKeywords are the statement openers the boundary scan accepts.
var leadingKeywords = []string{"select", "show", "with", "describe", "explain", "use"}

var (
	fenceOpenRE  = regexp.MustCompile("(?i)^```[a-zA-Z0-9]*[ \t]*\r?\n?")
	fenceCloseRE = regexp.MustCompile("\\s*```\\s*$")
	tableRefRE   = regexp.MustCompile(`(?i)\b(FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`)
)

// ValidationError marks model output the sanitizer refuses to execute.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Sanitize converts raw generation-service output into a single
// executable statement qualified against the target database. The
// steps run in a fixed order; qualification happens before the
// restricted-namespace check so a newly-qualified system reference is
// still caught.
func Sanitize(raw, database string) (string, error) {
	text := stripFences(raw)
	text = firstKeywordWindow(text)
	text = strings.ReplaceAll(text, placeholderDatabase, "'"+database+"'")
	text = QualifyTableNames(text, database)

	if strings.Contains(strings.ToLower(text), "information_schema") {
		return "", &ValidationError{Message: "queries against information_schema are not supported"}
	}

	return firstStatement(text), nil
}

// stripFences removes a leading code-fence marker (with an optional
// language tag) and a trailing fence. Unfenced input passes through.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = fenceOpenRE.ReplaceAllString(trimmed, "")
	trimmed = fenceCloseRE.ReplaceAllString(trimmed, "")
	return trimmed
}

// firstKeywordWindow drops narrative lines preceding the first line that
// opens with a recognized statement keyword. Text with no such line
// passes through unchanged; execution will reject it later.
func firstKeywordWindow(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lowered := strings.ToLower(strings.TrimSpace(line))
		for _, keyword := range leadingKeywords {
			if strings.HasPrefix(lowered, keyword) {
				return strings.Join(lines[i:], "\n")
			}
		}
	}
	return text
}

// QualifyTableNames rewrites every bare identifier following FROM or
// JOIN as <database>.<identifier>. Identifiers that already carry a
// dot are left alone, which makes the rewrite idempotent. This is a
// textual pass, not a parse; it applies inside subqueries too.
func QualifyTableNames(sqlText, database string) string {
	return tableRefRE.ReplaceAllStringFunc(sqlText, func(match string) string {
		groups := tableRefRE.FindStringSubmatch(match)
		keyword, table := groups[1], groups[2]
		if strings.Contains(table, ".") {
			return match
		}
		return keyword + " " + database + "." + table
	})
}

// firstStatement renders the first statement of the text, discarding
// anything after a top-level semicolon. Splitting respects string
// literals, quoted identifiers, and comments so a semicolon inside a
// literal does not end the statement.
func firstStatement(text string) string {
	statements := splitStatements(text)
	if len(statements) == 0 {
		return strings.TrimSpace(text)
	}
	return statements[0]
}

func splitStatements(text string) []string {
	var statements []string
	var current strings.Builder

	const (
		stateDefault = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
		stateLineComment
		stateBlockComment
	)
	state := stateDefault

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateDefault:
			switch {
			case ch == ';':
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
				continue
			case ch == '\'':
				state = stateSingleQuote
			case ch == '"':
				state = stateDoubleQuote
			case ch == '`':
				state = stateBacktick
			case ch == '-' && next == '-':
				state = stateLineComment
			case ch == '/' && next == '*':
				state = stateBlockComment
			}
		case stateSingleQuote:
			if ch == '\'' {
				// doubled quote is an escaped quote, stay in the literal
				if next == '\'' {
					current.WriteRune(ch)
					i++
					ch = runes[i]
				} else {
					state = stateDefault
				}
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateDefault
			}
		case stateBacktick:
			if ch == '`' {
				state = stateDefault
			}
		case stateLineComment:
			if ch == '\n' {
				state = stateDefault
			}
		case stateBlockComment:
			if ch == '*' && next == '/' {
				current.WriteRune(ch)
				i++
				ch = runes[i]
				state = stateDefault
			}
		}
		current.WriteRune(ch)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
