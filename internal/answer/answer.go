// Package answer defines the Query Result Bundle: the immutable outcome of
// processing one question, and the unit of caching and session history.
package answer

import (
	"strings"
	"time"

	"github.com/blueinsight/blueinsight/internal/datastore"
	"github.com/blueinsight/blueinsight/internal/viz"
)

type Bundle struct {
	Question           string                       `json:"question"`
	GeneratedQuery     string                       `json:"generatedQuery"`
	Columns            []datastore.ColumnDescriptor `json:"columns"`
	Records            []datastore.Record           `json:"records"`
	BriefText          string                       `json:"briefText"`
	DetailedText       string                       `json:"detailedText"`
	Sections           []Section                    `json:"sections"`
	Insights           []string                     `json:"insights,omitempty"`
	Visualization      *viz.ChartSpec               `json:"visualization,omitempty"`
	MultiVisualization []viz.ChartSpec              `json:"multiVisualization,omitempty"`
	SessionID          string                       `json:"sessionId"`
	CreatedAt          time.Time                    `json:"createdAt"`
	ExecutionTimeMs    int64                        `json:"executionTimeMs"`
	Metadata           Metadata                     `json:"metadata"`
}

type Metadata struct {
	RecordCount           int      `json:"recordCount"`
	InferredQueryCategory Category `json:"inferredQueryCategory"`
	Failed                bool     `json:"failed,omitempty"`
	Truncated             bool     `json:"truncated,omitempty"`
}

// Section is one titled block of the detailed report, streamed separately.
type Section struct {
	Tag     string `json:"tag"`
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

// Category tags a question with the analysis section it resembles.
type Category string

const (
	CategoryOverview    Category = "overview"
	CategoryGeographic  Category = "geographic"
	CategoryBusiness    Category = "category"
	CategoryVolume      Category = "volume"
	CategoryProvider    Category = "provider"
	CategoryOperational Category = "operational"
	CategoryTrend       Category = "trend"
	CategoryGeneral     Category = "general"
)

var categoryVocabulary = []struct {
	category Category
	words    []string
}{
	{CategoryTrend, []string{"trend", "over time", "monthly", "weekly", "growth", "timeline"}},
	{CategoryGeographic, []string{"area", "zone", "location", "district", "where"}},
	{CategoryVolume, []string{"gallons", "volume", "amount", "collected", "total"}},
	{CategoryProvider, []string{"provider", "contractor", "company", "vehicle", "truck"}},
	{CategoryBusiness, []string{"category", "restaurant", "business type", "outlet"}},
	{CategoryOperational, []string{"delay", "overdue", "duration", "turnaround", "interval"}},
	{CategoryOverview, []string{"overview", "summary", "how many records", "describe"}},
}

// InferCategory maps question vocabulary to a query category for bundle
// metadata and follow-up suggestions.
func InferCategory(question string) Category {
	lowered := strings.ToLower(question)
	for _, entry := range categoryVocabulary {
		for _, word := range entry.words {
			if strings.Contains(lowered, word) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}
