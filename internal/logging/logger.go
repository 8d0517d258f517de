package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithQuery returns a logger with query context fields attached.
// Use this for all logging within a single query's lifecycle.
func WithQuery(requestID, question string) *slog.Logger {
	return slog.With(
		"request_id", requestID,
		"question_length", len(question),
	)
}

// WithBatch returns a logger scoped to one item of a batch request.
func WithBatch(logger *slog.Logger, batchIndex int) *slog.Logger {
	return logger.With("batch_index", batchIndex)
}
