package datastore

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// YearFilter bounds analysis to a default year when the query does not pick
// a window itself. This is a documented scope heuristic, not a correctness
// guarantee: it only fires when the query mentions neither an explicit year
// nor the primary date column.
type YearFilter struct {
	Year       int
	DateColumn string
}

func DefaultYearFilter() YearFilter {
	return YearFilter{Year: 2023, DateColumn: "collected_date"}
}

var yearLiteral = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Apply returns the query with the default-year predicate inserted, and
// whether an insertion happened. Insertion is aware of the statement's
// top-level clause structure: an existing WHERE predicate is parenthesized
// before the year condition is ANDed on, so grouped OR predicates keep their
// meaning.
func (f YearFilter) Apply(sqlText string) (string, bool) {
	if f.Year <= 0 || strings.TrimSpace(f.DateColumn) == "" {
		return sqlText, false
	}
	lowered := strings.ToLower(sqlText)
	if yearLiteral.MatchString(lowered) {
		return sqlText, false
	}
	if strings.Contains(lowered, strings.ToLower(f.DateColumn)) {
		return sqlText, false
	}

	predicate := fmt.Sprintf("EXTRACT(YEAR FROM %s) = %d", f.DateColumn, f.Year)

	whereStart, whereEnd := topLevelKeyword(sqlText, "where")
	tailStart := topLevelTailClause(sqlText, whereEnd)

	if whereStart < 0 {
		insertAt := tailStart
		if insertAt < 0 {
			insertAt = len(sqlText)
		}
		head := strings.TrimRight(sqlText[:insertAt], " \t\n")
		tail := sqlText[insertAt:]
		if tail != "" && !strings.HasPrefix(tail, " ") {
			tail = " " + tail
		}
		return head + " WHERE " + predicate + tail, true
	}

	bodyEnd := tailStart
	if bodyEnd < 0 {
		bodyEnd = len(sqlText)
	}
	body := strings.TrimSpace(sqlText[whereEnd:bodyEnd])
	if body == "" {
		return sqlText, false
	}
	rewritten := sqlText[:whereEnd] + " (" + body + ") AND " + predicate
	if tailStart >= 0 {
		rewritten += " " + strings.TrimLeft(sqlText[tailStart:], " \t\n")
	}
	return rewritten, true
}

// topLevelKeyword finds the first occurrence of word outside quotes and
// parentheses. Returns start and end offsets, or -1.
func topLevelKeyword(sqlText, word string) (int, int) {
	positions := scanTopLevelWords(sqlText)
	for _, pos := range positions {
		if strings.EqualFold(sqlText[pos.start:pos.end], word) {
			return pos.start, pos.end
		}
	}
	return -1, -1
}

// topLevelTailClause returns the offset of the first trailing clause (GROUP,
// ORDER, HAVING, LIMIT, QUALIFY) after offset, or -1.
func topLevelTailClause(sqlText string, after int) int {
	for _, pos := range scanTopLevelWords(sqlText) {
		if pos.start < after {
			continue
		}
		switch strings.ToLower(sqlText[pos.start:pos.end]) {
		case "group", "order", "having", "limit", "qualify":
			return pos.start
		}
	}
	return -1
}

type wordPos struct {
	start int
	end   int
}

func scanTopLevelWords(sqlText string) []wordPos {
	words := make([]wordPos, 0, 16)
	depth := 0
	inSingle := false
	inDouble := false
	wordStart := -1

	flush := func(end int) {
		if wordStart >= 0 {
			words = append(words, wordPos{start: wordStart, end: end})
			wordStart = -1
		}
	}

	for i, r := range sqlText {
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
			flush(i)
			inSingle = true
		case r == '"':
			flush(i)
			inDouble = true
		case r == '(':
			flush(i)
			depth++
		case r == ')':
			flush(i)
			depth--
		case depth > 0:
			// words inside subqueries are not top level
		case unicode.IsLetter(r) || r == '_':
			if wordStart < 0 {
				wordStart = i
			}
		default:
			flush(i)
		}
	}
	flush(len(sqlText))
	return words
}
