package nlsql

import (
	"errors"
	"testing"
)

func TestSanitizeQualifiesBareTableReference(t *testing.T) {
	got, err := Sanitize("```sql\nSELECT SUM(amount) FROM orders\n```", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT SUM(amount) FROM sales_db.orders" {
		t.Fatalf("sql = %q", got)
	}
}

func TestSanitizeFencedAndUnfencedAgree(t *testing.T) {
	inner := "SELECT name FROM customers JOIN orders ON customers.id = orders.customer_id"
	plain, err := Sanitize(inner, "sales_db")
	if err != nil {
		t.Fatalf("Sanitize(plain) error = %v", err)
	}
	fenced, err := Sanitize("```sql\n"+inner+"\n```", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize(fenced) error = %v", err)
	}
	if plain != fenced {
		t.Fatalf("plain = %q, fenced = %q", plain, fenced)
	}
}

func TestSanitizeDropsNarrativePreamble(t *testing.T) {
	raw := "Here is the query you asked for:\nSELECT id FROM orders;"
	got, err := Sanitize(raw, "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT id FROM sales_db.orders" {
		t.Fatalf("sql = %q", got)
	}
}

func TestSanitizeKeepsStatementsAlreadyStartingWithKeyword(t *testing.T) {
	for _, raw := range []string{
		"SHOW TABLES",
		"WITH t AS (SELECT 1) SELECT * FROM t",
		"DESCRIBE orders",
		"EXPLAIN SELECT 1",
	} {
		if _, err := Sanitize(raw, "sales_db"); err != nil {
			t.Fatalf("Sanitize(%q) error = %v", raw, err)
		}
	}
}

func TestSanitizeWithoutRecognizedKeywordPassesThrough(t *testing.T) {
	got, err := Sanitize("I cannot answer that question.", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "I cannot answer that question." {
		t.Fatalf("sql = %q", got)
	}
}

func TestSanitizeReplacesDatabasePlaceholder(t *testing.T) {
	got, err := Sanitize("SELECT * FROM sales_db.orders WHERE db = 'your_database_name'", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT * FROM sales_db.orders WHERE db = 'sales_db'" {
		t.Fatalf("sql = %q", got)
	}
}

func TestSanitizeRejectsInformationSchema(t *testing.T) {
	for _, raw := range []string{
		"SELECT table_name FROM information_schema.tables",
		"select * from INFORMATION_SCHEMA.columns",
	} {
		_, err := Sanitize(raw, "sales_db")
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("Sanitize(%q) err = %v, want ValidationError", raw, err)
		}
		if validation.Message == "" {
			t.Fatal("validation message should name the restriction")
		}
	}
}

func TestSanitizeTakesFirstStatementOnly(t *testing.T) {
	got, err := Sanitize("SELECT id FROM orders; DROP TABLE orders;", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT id FROM sales_db.orders" {
		t.Fatalf("sql = %q", got)
	}
}

func TestSanitizeSemicolonInsideLiteralDoesNotSplit(t *testing.T) {
	got, err := Sanitize("SELECT id FROM orders WHERE note = 'a;b'", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT id FROM sales_db.orders WHERE note = 'a;b'" {
		t.Fatalf("sql = %q", got)
	}
}

func TestQualifyTableNamesIsIdempotent(t *testing.T) {
	once := QualifyTableNames("SELECT a.id FROM orders a JOIN customers c ON a.cid = c.id", "sales_db")
	twice := QualifyTableNames(once, "sales_db")
	if once != twice {
		t.Fatalf("once = %q, twice = %q", once, twice)
	}
	if once != "SELECT a.id FROM sales_db.orders a JOIN sales_db.customers c ON a.cid = c.id" {
		t.Fatalf("sql = %q", once)
	}
}

func TestQualifyTableNamesSkipsQualifiedAndSubqueries(t *testing.T) {
	cases := map[string]string{
		"SELECT 1 FROM other_db.orders":           "SELECT 1 FROM other_db.orders",
		"SELECT 1 FROM (SELECT id FROM orders) t": "SELECT 1 FROM (SELECT id FROM sales_db.orders) t",
	}
	for in, want := range cases {
		if got := QualifyTableNames(in, "sales_db"); got != want {
			t.Fatalf("QualifyTableNames(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeTrimsTrailingSemicolonAndWhitespace(t *testing.T) {
	got, err := Sanitize("  SELECT 1 FROM sales_db.orders ;  \n", "sales_db")
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT 1 FROM sales_db.orders" {
		t.Fatalf("sql = %q", got)
	}
}
