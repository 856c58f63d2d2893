// Package insight produces the two answer text tracks (brief and detailed)
// plus a chart recommendation from a result set, via one structured
// completion call with a deterministic statistics fallback.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blueinsight/blueinsight/internal/answer"
	"github.com/blueinsight/blueinsight/internal/completion"
	"github.com/blueinsight/blueinsight/internal/datastore"
)

// multiChartRowFloor: below this many rows a single chart suffices.
const multiChartRowFloor = 10

type Config struct {
	Timeout         time.Duration
	RetryTimeout    time.Duration
	MaxTokens       int
	Temperature     float64
	SampleRows      int
	RetrySampleRows int
}

type Composer struct {
	client completion.Client
	cfg    Config
	logger *slog.Logger
}

// Composition is the composer's output. FromFallback records that the
// deterministic path produced the text.
type Composition struct {
	Brief        string
	Sections     []answer.Section
	DetailedText string
	Insights     []string
	ChartType    string
	MultiCharts  bool
	FromFallback bool
}

func NewComposer(client completion.Client, logger *slog.Logger, cfg Config) *Composer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 45 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = 50
	}
	if cfg.RetrySampleRows <= 0 {
		cfg.RetrySampleRows = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{client: client, cfg: cfg, logger: logger}
}

// Compose never fails: the primary completion call is retried once with a
// reduced sample, and both failures degrade to deterministic text derived
// from the classified columns.
func (c *Composer) Compose(ctx context.Context, question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) Composition {
	if c.client != nil {
		if composed, ok := c.composeViaCompletion(ctx, question, rs, columns, c.cfg.SampleRows, c.cfg.Timeout); ok {
			return c.finish(question, rs, columns, composed)
		}
		if composed, ok := c.composeViaCompletion(ctx, question, rs, columns, c.cfg.RetrySampleRows, c.cfg.RetryTimeout); ok {
			return c.finish(question, rs, columns, composed)
		}
		c.logger.WarnContext(ctx, "completion composition failed, using deterministic fallback")
	}
	return c.finish(question, rs, columns, Fallback(question, rs, columns))
}

func (c *Composer) finish(question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor, composed Composition) Composition {
	if composed.DetailedText == "" {
		composed.DetailedText = renderSections(composed.Sections)
	}
	composed.MultiCharts = WantsMultipleCharts(question, rs, columns)
	return composed
}

func (c *Composer) composeViaCompletion(ctx context.Context, question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor, sampleRows int, timeout time.Duration) (Composition, bool) {
	raw, err := c.client.Complete(ctx, completion.Request{
		System:      composerRules,
		Prompt:      buildComposePrompt(question, rs, columns, sampleRows),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Timeout:     timeout,
	})
	if err != nil {
		c.logger.Warn("composition completion call failed", slog.Any("error", err))
		return Composition{}, false
	}

	composed, err := parseComposition(raw)
	if err != nil {
		c.logger.Warn("composition response unparseable", slog.Any("error", err))
		return Composition{}, false
	}
	return composed, true
}

const composerRules = "You are an operations analyst. Answer with a single JSON object: " +
	`{"brief": string, "sections": [{"tag": string, "heading": string, "text": string}], ` +
	`"insights": [string], "chart": {"type": "bar"|"line"|"pie"|"scatter"}}. ` +
	"The brief is one or two conversational sentences. Sections form a detailed report. " +
	"Return ONLY JSON."

func buildComposePrompt(question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor, sampleRows int) string {
	var builder strings.Builder
	builder.WriteString("Question:\n")
	builder.WriteString(strings.TrimSpace(question))
	fmt.Fprintf(&builder, "\n\nResult: %d rows. Columns:\n", len(rs.Records))
	for _, column := range columns {
		fmt.Fprintf(&builder, "- %s (%s)\n", column.Name, column.Kind)
	}
	builder.WriteString("\nSample rows (JSON):\n")
	builder.WriteString(sampleJSON(rs, sampleRows))
	return builder.String()
}

func sampleJSON(rs datastore.ResultSet, limit int) string {
	records := rs.Records
	if len(records) > limit {
		records = records[:limit]
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

type compositionPayload struct {
	Brief    string           `json:"brief"`
	Sections []answer.Section `json:"sections"`
	Insights []string         `json:"insights"`
	Chart    struct {
		Type string `json:"type"`
	} `json:"chart"`
}

func parseComposition(raw string) (Composition, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload compositionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Composition{}, fmt.Errorf("parse composition: %w (response: %.200s)", err, cleaned)
	}
	if strings.TrimSpace(payload.Brief) == "" {
		return Composition{}, fmt.Errorf("composition missing brief")
	}
	if len(payload.Sections) == 0 {
		return Composition{}, fmt.Errorf("composition missing sections")
	}
	return Composition{
		Brief:     strings.TrimSpace(payload.Brief),
		Sections:  payload.Sections,
		Insights:  payload.Insights,
		ChartType: payload.Chart.Type,
	}, nil
}

func renderSections(sections []answer.Section) string {
	var builder strings.Builder
	for i, section := range sections {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		if section.Heading != "" {
			fmt.Fprintf(&builder, "## %s\n\n", section.Heading)
		}
		builder.WriteString(section.Text)
	}
	return builder.String()
}

var comparisonWords = []string{"compare", "comparison", "versus", " vs ", "breakdown", "across", "trend", "by month and"}

// WantsMultipleCharts combines comparison vocabulary with result shape:
// more than one numeric column and more than ten rows.
func WantsMultipleCharts(question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) bool {
	if len(rs.Records) <= multiChartRowFloor {
		return false
	}
	numeric := 0
	for _, column := range columns {
		if column.Kind == datastore.KindNumeric {
			numeric++
		}
	}
	if numeric < 2 {
		return false
	}
	lowered := strings.ToLower(question)
	for _, word := range comparisonWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
