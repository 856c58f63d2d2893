// Package viz infers a chart type from question wording and result shape,
// and emits renderer-agnostic chart specs.
package viz

import (
	"strings"

	"github.com/blueinsight/blueinsight/internal/datastore"
)

type ChartType string

const (
	Bar     ChartType = "bar"
	Line    ChartType = "line"
	Pie     ChartType = "pie"
	Scatter ChartType = "scatter"
)

// pieRowLimit: small result sets read better as a share breakdown.
const pieRowLimit = 10

type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec is a renderer-agnostic chart description. The presentation
// layer decides how to draw it.
type ChartSpec struct {
	Type         ChartType `json:"type"`
	Title        string    `json:"title,omitempty"`
	CategoryAxis string    `json:"categoryAxis"`
	ValueAxis    string    `json:"valueAxis"`
	Points       []Point   `json:"points"`
	ShowLegend   bool      `json:"showLegend"`
	ShowGrid     bool      `json:"showGrid"`
	Color        string    `json:"color,omitempty"`
}

var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16",
}

var (
	timeWords         = []string{"trend", "over time", "timeline", "monthly", "weekly", "daily", "by month", "by week", "per month", "growth"}
	distributionWords = []string{"distribution", "percentage", "share", "proportion", "breakdown", "split"}
	correlationWords  = []string{"correlation", "relationship", "versus", " vs ", "against", "correlate"}
)

// SelectChartType applies the heuristic order: time-series vocabulary or a
// temporal column wins, then distribution vocabulary or a small result set,
// then correlation vocabulary, else bar.
func SelectChartType(question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) ChartType {
	lowered := strings.ToLower(question)

	if containsAny(lowered, timeWords) || hasKind(columns, datastore.KindTemporal) {
		return Line
	}
	if containsAny(lowered, distributionWords) || (len(rs.Records) > 0 && len(rs.Records) <= pieRowLimit) {
		return Pie
	}
	if containsAny(lowered, correlationWords) {
		return Scatter
	}
	return Bar
}

// BuildChartSpec binds the first non-numeric column to the category axis and
// the first numeric column to the value axis, dropping rows missing either
// value. ok is false when no chart is warranted; callers omit the chart
// rather than fail.
func BuildChartSpec(chartType ChartType, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) (ChartSpec, bool) {
	category := firstNonNumeric(columns)
	value := firstNumeric(columns)

	if value == "" && chartType != Pie {
		return ChartSpec{}, false
	}
	if category == "" {
		return ChartSpec{}, false
	}

	points := buildPoints(rs, category, value)
	if len(points) == 0 {
		return ChartSpec{}, false
	}

	valueAxis := value
	if valueAxis == "" {
		valueAxis = "count"
	}
	return ChartSpec{
		Type:         chartType,
		CategoryAxis: category,
		ValueAxis:    valueAxis,
		Points:       points,
		ShowLegend:   true,
		ShowGrid:     chartType != Pie,
		Color:        palette[0],
	}, true
}

// BuildMultiChartSpecs emits one chart per numeric column, sharing the
// category axis, capped at three charts.
func BuildMultiChartSpecs(chartType ChartType, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) []ChartSpec {
	const maxCharts = 3

	category := firstNonNumeric(columns)
	if category == "" {
		return nil
	}

	specs := make([]ChartSpec, 0, maxCharts)
	for _, column := range columns {
		if column.Kind != datastore.KindNumeric {
			continue
		}
		points := buildPoints(rs, category, column.Name)
		if len(points) == 0 {
			continue
		}
		specs = append(specs, ChartSpec{
			Type:         chartType,
			CategoryAxis: category,
			ValueAxis:    column.Name,
			Points:       points,
			ShowLegend:   true,
			ShowGrid:     chartType != Pie,
			Color:        palette[len(specs)%len(palette)],
		})
		if len(specs) == maxCharts {
			break
		}
	}
	return specs
}

// buildPoints drops rows missing either axis value. With an empty value
// column (pie over a purely categorical result) it falls back to category
// frequencies.
func buildPoints(rs datastore.ResultSet, category, value string) []Point {
	if value == "" {
		return frequencyPoints(rs, category)
	}

	points := make([]Point, 0, len(rs.Records))
	for _, record := range rs.Records {
		label := datastore.StringValue(record[category])
		if label == "" {
			continue
		}
		number, ok := datastore.NumericValue(record[value])
		if !ok {
			continue
		}
		points = append(points, Point{Label: label, Value: number})
	}
	return points
}

func frequencyPoints(rs datastore.ResultSet, category string) []Point {
	counts := make(map[string]float64)
	order := make([]string, 0)
	for _, record := range rs.Records {
		label := datastore.StringValue(record[category])
		if label == "" {
			continue
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}
	points := make([]Point, 0, len(order))
	for _, label := range order {
		points = append(points, Point{Label: label, Value: counts[label]})
	}
	return points
}

func firstNonNumeric(columns []datastore.ColumnDescriptor) string {
	for _, column := range columns {
		if column.Kind != datastore.KindNumeric {
			return column.Name
		}
	}
	return ""
}

func firstNumeric(columns []datastore.ColumnDescriptor) string {
	for _, column := range columns {
		if column.Kind == datastore.KindNumeric {
			return column.Name
		}
	}
	return ""
}

func hasKind(columns []datastore.ColumnDescriptor, kind datastore.ColumnKind) bool {
	for _, column := range columns {
		if column.Kind == kind {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
