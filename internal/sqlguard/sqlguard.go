// Package sqlguard validates generated query text before it reaches the
// datastore. The datastore accepts raw query strings, so the safety burden
// is entirely here: only single read-only SELECT statements pass.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const MaxQueryLength = 8000

var (
	ErrNotSelect        = errors.New("query must be a single SELECT statement")
	ErrForbiddenKeyword = errors.New("query contains a forbidden keyword")
	ErrTooLong          = errors.New("query exceeds the maximum length")
	ErrUnsupportedShape = errors.New("unsupported query shape")
)

var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "create", "alter",
	"truncate", "exec", "execute", "grant", "revoke",
}

var keywordPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)

// Validate returns the cleaned query text. A single trailing semicolon is
// stripped; a WITH-prefixed query is mechanically rewritten into a nested
// subquery SELECT, and the rewrite fails loudly on any ambiguity instead of
// passing a guess through.
func Validate(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	if cleaned == "" {
		return "", ErrNotSelect
	}
	if len(cleaned) > MaxQueryLength {
		return "", fmt.Errorf("%w: %d characters", ErrTooLong, len(cleaned))
	}

	if hasWordPrefix(cleaned, "with") {
		rewritten, err := rewriteNamedSubquery(cleaned)
		if err != nil {
			return "", err
		}
		cleaned = rewritten
	}

	if !hasWordPrefix(cleaned, "select") {
		return "", ErrNotSelect
	}
	if err := scanForbidden(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

func scanForbidden(sqlText string) error {
	if match := keywordPattern.FindString(sqlText); match != "" {
		return fmt.Errorf("%w: %s", ErrForbiddenKeyword, strings.ToUpper(match))
	}
	if strings.Contains(sqlText, ";") {
		return fmt.Errorf("%w: statement separator", ErrForbiddenKeyword)
	}
	if strings.Contains(sqlText, "--") {
		return fmt.Errorf("%w: inline comment", ErrForbiddenKeyword)
	}
	if strings.Contains(sqlText, "/*") {
		return fmt.Errorf("%w: block comment", ErrForbiddenKeyword)
	}
	return nil
}

func hasWordPrefix(sqlText, word string) bool {
	if len(sqlText) < len(word) {
		return false
	}
	if !strings.EqualFold(sqlText[:len(word)], word) {
		return false
	}
	if len(sqlText) == len(word) {
		return true
	}
	next := sqlText[len(word)]
	return next == ' ' || next == '\t' || next == '\n' || next == '('
}
