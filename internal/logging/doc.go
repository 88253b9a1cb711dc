// Package logging provides structured logging utilities for the relay.
//
// This package centralizes logging patterns so every component emits the same
// attribute keys through the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "relay.query")
//	logger.Info("dispatching report",
//	    logging.Workspace(workspaceID),
//	    logging.Tool("get_top_pages"))
//
// # Security Considerations
//
//   - Tokens are never logged
//   - Redirect URLs are logged without their query string, use Redirect
package logging
