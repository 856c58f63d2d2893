// Package observability holds the logger constructor, trace propagation,
// HTTP middleware, and the Prometheus metrics for both the HTTP surface and
// the question pipeline.
package observability

import (
	"io"
	"log/slog"

	"github.com/blueinsight/blueinsight/internal/config"
)

// NewLogger builds the service-wide slog logger. The prod profile emits JSON
// for log shipping; dev keeps the text handler readable.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}
