package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blueinsight/blueinsight/internal/answer"
	"github.com/blueinsight/blueinsight/internal/datastore"
)

// Fallback builds deterministic, statistics-derived text. It must succeed
// for any input, including an empty result set.
func Fallback(question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) Composition {
	if len(rs.Records) == 0 {
		return Composition{
			Brief: "No data found for this question. Try widening the time window or rephrasing it.",
			Sections: []answer.Section{{
				Tag:     "empty",
				Heading: "No Matching Records",
				Text:    "The query executed successfully but returned no rows. The dataset may not cover the requested filter, or the question may reference values that do not exist.",
			}},
			FromFallback: true,
		}
	}

	brief := fallbackBrief(rs, columns)
	sections := []answer.Section{{
		Tag:     "summary",
		Heading: "Result Summary",
		Text:    brief,
	}}
	insights := make([]string, 0, 4)

	if numericSection, numericInsights := summarizeNumeric(rs, columns); numericSection != nil {
		sections = append(sections, *numericSection)
		insights = append(insights, numericInsights...)
	}
	if categoricalSection := summarizeCategorical(rs, columns); categoricalSection != nil {
		sections = append(sections, *categoricalSection)
	}

	return Composition{
		Brief:        brief,
		Sections:     sections,
		Insights:     insights,
		FromFallback: true,
	}
}

func fallbackBrief(rs datastore.ResultSet, columns []datastore.ColumnDescriptor) string {
	brief := fmt.Sprintf("The query returned %d record(s).", len(rs.Records))
	name, share, value, ok := leadingCategoricalShare(rs, columns)
	if ok {
		brief += fmt.Sprintf(" %q accounts for %.1f%% of rows in %s.", value, share*100, name)
	}
	return brief
}

func leadingCategoricalShare(rs datastore.ResultSet, columns []datastore.ColumnDescriptor) (column string, share float64, value string, ok bool) {
	for _, desc := range columns {
		if desc.Kind != datastore.KindCategorical {
			continue
		}
		counts := map[string]int{}
		total := 0
		for _, record := range rs.Records {
			label := datastore.StringValue(record[desc.Name])
			if label == "" {
				continue
			}
			counts[label]++
			total++
		}
		if total == 0 {
			return "", 0, "", false
		}
		best := ""
		for label, count := range counts {
			if best == "" || count > counts[best] || (count == counts[best] && label < best) {
				best = label
			}
		}
		return desc.Name, float64(counts[best]) / float64(total), best, true
	}
	return "", 0, "", false
}

func summarizeNumeric(rs datastore.ResultSet, columns []datastore.ColumnDescriptor) (*answer.Section, []string) {
	var lines []string
	var insights []string
	for _, desc := range columns {
		if desc.Kind != datastore.KindNumeric {
			continue
		}
		sum := 0.0
		count := 0
		for _, record := range rs.Records {
			if number, ok := datastore.NumericValue(record[desc.Name]); ok {
				sum += number
				count++
			}
		}
		if count == 0 {
			continue
		}
		average := sum / float64(count)
		lines = append(lines, fmt.Sprintf("- %s: total %.2f, average %.2f over %d value(s)", desc.Name, sum, average, count))
		insights = append(insights, fmt.Sprintf("%s averages %.2f per record", desc.Name, average))
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return &answer.Section{
		Tag:     "metrics",
		Heading: "Key Metrics",
		Text:    strings.Join(lines, "\n"),
	}, insights
}

func summarizeCategorical(rs datastore.ResultSet, columns []datastore.ColumnDescriptor) *answer.Section {
	var lines []string
	for _, desc := range columns {
		if desc.Kind != datastore.KindCategorical {
			continue
		}
		distinct := map[string]struct{}{}
		for _, record := range rs.Records {
			if label := datastore.StringValue(record[desc.Name]); label != "" {
				distinct[label] = struct{}{}
			}
		}
		if len(distinct) == 0 {
			continue
		}
		values := make([]string, 0, len(distinct))
		for label := range distinct {
			values = append(values, label)
		}
		sort.Strings(values)
		if len(values) > 8 {
			values = append(values[:8], "…")
		}
		lines = append(lines, fmt.Sprintf("- %s: %d distinct value(s) (%s)", desc.Name, len(distinct), strings.Join(values, ", ")))
	}
	if len(lines) == 0 {
		return nil
	}
	return &answer.Section{
		Tag:     "dimensions",
		Heading: "Dimensions",
		Text:    strings.Join(lines, "\n"),
	}
}
