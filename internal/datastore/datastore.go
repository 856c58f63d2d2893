package datastore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxRows caps result sets at ingestion. Rows beyond the cap are dropped,
// not erred, to bound memory and serialization cost.
const MaxRows = 10000

// Record is a single result row mapping column names to scalar values
// (string, float64, int64, or nil).
type Record map[string]any

// ResultSet is an ordered, size-capped sequence of records together with the
// column order reported by the datastore.
type ResultSet struct {
	Columns   []string
	Records   []Record
	Truncated bool
}

// ColumnKind classifies a result column for downstream chart and text
// generation. Classification happens once per result set; callers pass the
// descriptors around instead of re-inspecting rows.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindTemporal    ColumnKind = "temporal"
)

type ColumnDescriptor struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Runner executes a raw query string against the datastore and returns the
// resulting records. Implementations do not retry; retry policy lives in the
// Executor.
type Runner interface {
	RunQuery(ctx context.Context, sqlText string) (ResultSet, error)
}

// Classify inspects up to sampleLimit records per column and returns one
// descriptor per column. Numeric detection accepts native numbers and numeric
// strings; temporal detection matches date-like column names and ISO-date
// shaped string values.
func Classify(rs ResultSet) []ColumnDescriptor {
	const sampleLimit = 50

	descriptors := make([]ColumnDescriptor, 0, len(rs.Columns))
	for _, name := range rs.Columns {
		descriptors = append(descriptors, ColumnDescriptor{
			Name: name,
			Kind: classifyColumn(name, rs.Records, sampleLimit),
		})
	}
	return descriptors
}

func classifyColumn(name string, records []Record, sampleLimit int) ColumnKind {
	if looksTemporalName(name) {
		return KindTemporal
	}

	seen := 0
	numeric := 0
	temporal := 0
	for _, record := range records {
		if seen >= sampleLimit {
			break
		}
		value, ok := record[name]
		if !ok || value == nil {
			continue
		}
		seen++
		if _, ok := NumericValue(value); ok {
			numeric++
			continue
		}
		if text, ok := value.(string); ok && looksTemporalValue(text) {
			temporal++
		}
	}
	if seen == 0 {
		return KindCategorical
	}
	if temporal == seen {
		return KindTemporal
	}
	if numeric == seen {
		return KindNumeric
	}
	return KindCategorical
}

// NumericValue reports the float64 form of a scalar, accepting native number
// types and numeric strings.
func NumericValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case time.Time:
		return 0, false
	default:
		return 0, false
	}
}

// StringValue renders a scalar for labels and templated text.
func StringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func looksTemporalName(name string) bool {
	lowered := strings.ToLower(name)
	for _, marker := range []string{"date", "time", "month", "week", "day", "year"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func looksTemporalValue(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006-01", "01/02/2006"} {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return true
		}
	}
	return false
}
