// Package nl2sql turns a natural-language analytics question into a
// validated SQL query using the completion client and the sqlguard
// validator.
package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blueinsight/blueinsight/internal/completion"
	"github.com/blueinsight/blueinsight/internal/sqlguard"
)

type Config struct {
	Schema      SchemaDescription
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

type Generator struct {
	client completion.Client
	cfg    Config
}

func NewGenerator(client completion.Client, cfg Config) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Schema.Table == "" {
		cfg.Schema = DefaultSchema()
	}
	return &Generator{client: client, cfg: cfg}
}

// Generate produces a clean query for the question. A completion failure
// propagates as *completion.Error; a malformed query from the model is a
// terminal validation failure for this request, never retried here.
func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	raw, err := g.client.Complete(ctx, completion.Request{
		System:      systemRules,
		Prompt:      g.buildPrompt(question),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Timeout:     g.cfg.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	cleaned, err := sqlguard.Validate(stripDecoration(raw))
	if err != nil {
		return "", fmt.Errorf("generated query rejected: %w", err)
	}
	return cleaned, nil
}

func (g *Generator) buildPrompt(question string) string {
	var builder strings.Builder
	builder.WriteString("Schema:\n")
	builder.WriteString(g.cfg.Schema.Describe())
	builder.WriteString("\nVocabulary:\n")
	builder.WriteString(g.cfg.Schema.Vocabulary())
	builder.WriteString("\nQuestion:\n")
	builder.WriteString(strings.TrimSpace(question))
	builder.WriteString("\n\nReturn a single SQL query only.")
	return builder.String()
}

const systemRules = "You convert operations analytics questions into a single read-only SELECT statement. " +
	"Rules: never modify data; do not add LIMIT clauses, the dataset is small enough to analyze wholesale; " +
	"when the question names no time period, assume the default analysis year; " +
	"prefer nested subqueries over WITH blocks; " +
	"return ONLY SQL, no markdown and no explanation."

// stripDecoration removes code-fence wrapping and a leading label the model
// may echo back ("SQL:", "Query:").
func stripDecoration(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	for _, label := range []string{"sql:", "query:"} {
		if len(trimmed) >= len(label) && strings.EqualFold(trimmed[:len(label)], label) {
			trimmed = strings.TrimSpace(trimmed[len(label):])
			break
		}
	}
	return trimmed
}
