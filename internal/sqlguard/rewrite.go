package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// rewriteNamedSubquery turns `WITH name AS (body) SELECT ...` into a plain
// SELECT by substituting the parenthesized body for every FROM/JOIN reference
// to the name. Exactly one named block is supported; recursive, nested, or
// multiple blocks fail with ErrUnsupportedShape rather than risk a wrong
// rewrite.
func rewriteNamedSubquery(sqlText string) (string, error) {
	rest := strings.TrimSpace(sqlText[len("with"):])
	if hasWordPrefix(rest, "recursive") {
		return "", fmt.Errorf("%w: recursive named subquery", ErrUnsupportedShape)
	}

	name, rest, err := takeIdentifier(rest)
	if err != nil {
		return "", err
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		return "", fmt.Errorf("%w: named subquery column list", ErrUnsupportedShape)
	}
	if !hasWordPrefix(rest, "as") {
		return "", fmt.Errorf("%w: expected AS after subquery name", ErrUnsupportedShape)
	}
	rest = strings.TrimSpace(rest[len("as"):])
	if !strings.HasPrefix(rest, "(") {
		return "", fmt.Errorf("%w: expected parenthesized subquery body", ErrUnsupportedShape)
	}

	body, trailing, err := takeParenthesized(rest)
	if err != nil {
		return "", err
	}
	if keywordPatternWith.MatchString(body) {
		return "", fmt.Errorf("%w: nested named subquery", ErrUnsupportedShape)
	}

	trailing = strings.TrimSpace(trailing)
	if strings.HasPrefix(trailing, ",") {
		return "", fmt.Errorf("%w: multiple named subqueries", ErrUnsupportedShape)
	}
	if !hasWordPrefix(trailing, "select") {
		return "", fmt.Errorf("%w: expected SELECT after named subquery", ErrUnsupportedShape)
	}

	rewritten, replaced := substituteReferences(trailing, name, body)
	if replaced == 0 {
		return "", fmt.Errorf("%w: named subquery %q is never referenced", ErrUnsupportedShape, name)
	}
	return rewritten, nil
}

var keywordPatternWith = regexp.MustCompile(`(?i)\bwith\b`)

// substituteReferences replaces FROM/JOIN references to name with the
// parenthesized body. When the reference already carries an alias the body
// is substituted bare; otherwise the name itself becomes the alias so that
// qualified column references keep resolving.
func substituteReferences(sqlText, name, body string) (string, int) {
	pattern := regexp.MustCompile(`(?i)\b(from|join)(\s+)` + regexp.QuoteMeta(name) + `\b`)

	replaced := 0
	var builder strings.Builder
	last := 0
	for _, match := range pattern.FindAllStringSubmatchIndex(sqlText, -1) {
		start, end := match[0], match[1]
		keyword := sqlText[match[2]:match[3]]

		builder.WriteString(sqlText[last:start])
		builder.WriteString(keyword)
		builder.WriteString(" (")
		builder.WriteString(body)
		builder.WriteString(")")
		if !hasAliasAfter(sqlText[end:]) {
			builder.WriteString(" AS ")
			builder.WriteString(name)
		}
		last = end
		replaced++
	}
	builder.WriteString(sqlText[last:])
	return builder.String(), replaced
}

var sqlClauseWords = map[string]bool{
	"where": true, "group": true, "order": true, "having": true,
	"limit": true, "qualify": true, "join": true, "left": true,
	"right": true, "inner": true, "outer": true, "full": true,
	"cross": true, "on": true, "union": true, "select": true,
}

func hasAliasAfter(tail string) bool {
	trimmed := strings.TrimLeft(tail, " \t\n")
	if trimmed == "" || trimmed[0] == ',' || trimmed[0] == ')' {
		return false
	}
	word := leadingWord(trimmed)
	if word == "" {
		return false
	}
	if strings.EqualFold(word, "as") {
		return true
	}
	return !sqlClauseWords[strings.ToLower(word)]
}

func leadingWord(s string) string {
	for i, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return s[:i]
		}
	}
	return s
}

func takeIdentifier(s string) (string, string, error) {
	word := leadingWord(s)
	if word == "" {
		return "", "", fmt.Errorf("%w: expected subquery name", ErrUnsupportedShape)
	}
	return word, s[len(word):], nil
}

// takeParenthesized returns the content of the leading parenthesized group
// and the remainder after the closing paren. Quoted strings are honored.
func takeParenthesized(s string) (string, string, error) {
	depth := 0
	inSingle := false
	inDouble := false
	for i, r := range s {
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
			}
		case inDouble:
			if r == '"' {
				inDouble = false
			}
		case r == '\'':
			inSingle = true
		case r == '"':
			inDouble = true
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i]), s[i+1:], nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: unbalanced parentheses in named subquery", ErrUnsupportedShape)
}
