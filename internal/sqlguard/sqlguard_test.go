package sqlguard

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsSelect(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain select",
			input: "SELECT area, SUM(gallons_collected) FROM collections GROUP BY area",
			want:  "SELECT area, SUM(gallons_collected) FROM collections GROUP BY area",
		},
		{
			name:  "trailing semicolon stripped",
			input: "SELECT COUNT(*) FROM collections;",
			want:  "SELECT COUNT(*) FROM collections",
		},
		{
			name:  "lowercase and padding",
			input: "  select zone from collections  ",
			want:  "select zone from collections",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.input)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Validate() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "   ", ErrNotSelect},
		{"not a select", "SHOW TABLES", ErrNotSelect},
		{"insert", "SELECT 1; INSERT INTO collections VALUES (1)", ErrForbiddenKeyword},
		{"drop", "SELECT * FROM collections WHERE area = 'x' DROP TABLE collections", ErrForbiddenKeyword},
		{"update keyword", "SELECT * FROM collections UPDATE", ErrForbiddenKeyword},
		{"inline comment", "SELECT area FROM collections -- hidden", ErrForbiddenKeyword},
		{"block comment", "SELECT area /* hidden */ FROM collections", ErrForbiddenKeyword},
		{"embedded separator", "SELECT 1; SELECT 2", ErrForbiddenKeyword},
		{"too long", "SELECT " + strings.Repeat("a", MaxQueryLength), ErrTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Validate(tc.input); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate(%q) error = %v, want %v", tc.name, err, tc.wantErr)
			}
		})
	}
}

func TestValidateKeywordNeedsWordBoundary(t *testing.T) {
	// Column names containing a forbidden keyword as a substring are fine.
	got, err := Validate("SELECT created_at_proxy FROM collections")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got == "" {
		t.Fatal("Validate() returned empty clean query")
	}
}

func TestValidateIdempotentOnCleanInput(t *testing.T) {
	inputs := []string{
		"SELECT area FROM collections",
		"WITH big AS (SELECT area FROM collections GROUP BY area) SELECT * FROM big",
	}
	for _, input := range inputs {
		first, err := Validate(input)
		if err != nil {
			t.Fatalf("Validate(%q) error = %v", input, err)
		}
		second, err := Validate(first)
		if err != nil {
			t.Fatalf("revalidate error = %v", err)
		}
		if first != second {
			t.Fatalf("validation not idempotent: %q vs %q", first, second)
		}
	}
}

func TestRewriteSingleNamedSubquery(t *testing.T) {
	input := "WITH totals AS (SELECT area, SUM(gallons_collected) AS g FROM collections GROUP BY area) SELECT area FROM totals ORDER BY g DESC"
	got, err := Validate(input)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := "SELECT area FROM (SELECT area, SUM(gallons_collected) AS g FROM collections GROUP BY area) AS totals ORDER BY g DESC"
	if got != want {
		t.Fatalf("Validate() = %q, want %q", got, want)
	}
}

func TestRewriteKeepsExistingAlias(t *testing.T) {
	input := "WITH totals AS (SELECT area FROM collections) SELECT t.area FROM totals t"
	got, err := Validate(input)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := "SELECT t.area FROM (SELECT area FROM collections) t"
	if got != want {
		t.Fatalf("Validate() = %q, want %q", got, want)
	}
}

func TestRewriteUnsupportedShapes(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"two named blocks", "WITH a AS (SELECT 1), b AS (SELECT 2) SELECT * FROM a"},
		{"nested named block", "WITH a AS (WITH b AS (SELECT 1) SELECT * FROM b) SELECT * FROM a"},
		{"recursive", "WITH RECURSIVE a AS (SELECT 1) SELECT * FROM a"},
		{"column list", "WITH a (x) AS (SELECT 1) SELECT * FROM a"},
		{"never referenced", "WITH a AS (SELECT 1) SELECT * FROM collections"},
		{"unbalanced parens", "WITH a AS (SELECT 1 SELECT * FROM a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Validate(tc.input); !errors.Is(err, ErrUnsupportedShape) {
				t.Fatalf("Validate() error = %v, want ErrUnsupportedShape", err)
			}
		})
	}
}
