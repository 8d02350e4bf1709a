// Package logger provides structured logging with context extraction and Sentry integration.
//
// This package extends the standard library's log/slog with two capabilities:
// automatic context-based attribute injection and optional Sentry error
// reporting. Provisioning runs and HTTP requests carry identifiers in their
// context; extractors surface them on every log line without boilerplate.
//
// # Basic Usage
//
// Create a logger with context extractors:
//
//	log := logger.New(server.RequestIDExtractor())
//
//	// request_id is automatically included for request-scoped contexts
//	log.InfoContext(ctx, "provisioning database", slog.String("database", "myapp"))
//
// # Sentry Integration
//
// For production error tracking, use NewWithSentry:
//
//	cfg := logger.SentryConfig{
//		DSN:         os.Getenv("SENTRY_DSN"),
//		Environment: "production",
//		MinLevel:    slog.LevelWarn,
//	}
//	log := logger.NewWithSentry(cfg, server.RequestIDExtractor())
//
// If SENTRY_DSN is empty, the logger gracefully falls back to stdout-only
// logging, making it safe to use the same code path in development and
// production. Swallowed per-connection provisioning errors are logged at
// error level, so Sentry still surfaces them even though the run reports
// success to its caller.
//
// # Context Extractors
//
// A ContextExtractor is a function that extracts a log attribute from context:
//
//	type ContextExtractor func(ctx context.Context) (slog.Attr, bool)
//
// Extractors are called on every log call, ensuring fresh values for
// request-scoped data. Return false to skip the attribute for that entry.
//
// # Handler Decoration
//
// The LogHandlerDecorator can wrap any slog.Handler to add context extraction:
//
//	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	log := slog.New(logger.NewLogHandlerDecorator(jsonHandler, extractors...))
//
// An internal multi-handler forwards logs to multiple destinations, enabling
// simultaneous stdout and Sentry logging. Sentry integration degrades
// gracefully: if the DSN is missing or initialization fails, logging
// continues to stdout without disruption.
package logger
