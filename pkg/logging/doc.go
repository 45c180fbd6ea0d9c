// Package logging configures the log/slog loggers used by the dispatcher,
// the admin API and the CLI. It supports configurable log levels and output
// formats, and fanning one record out to several handlers.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("server started", "addr", ":4280")
//	logger.Warn("no route matched", "method", "GET", "path", "/contacts")
//
// # Log Levels
//
// Four log levels are supported:
//   - Debug: Detailed information for debugging
//   - Info: General operational information
//   - Warn: Warning conditions that should be addressed
//   - Error: Error conditions that need attention
//
// # Output Formats
//
//   - Text: Human-readable format for development
//   - JSON: Structured format for log aggregation systems
//
// # Fan-out
//
// Config.Files adds JSON copies of the log, e.g. text to stderr and JSON to
// the file named by the CLI's --log-file. NewMultiHandler does the fan-out.
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via a setter.
// If no logger is provided, use logging.Nop() for a no-op logger.
package logging
