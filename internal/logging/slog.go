package logging

import (
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation    = "operation"
	KeyWorkspace    = "workspace_id"
	KeyOrganization = "organization_id"
	KeyPlatform     = "platform"
	KeyProperty     = "property_id"
	KeyRequestID    = "request_id"
	KeyDuration     = "duration"
	KeyError        = "error"
	KeyTool         = "tool"
	KeyRedirect     = "redirect_url"
)

// Log formats accepted by New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New creates a logger writing to w. Unknown formats fall back to JSON.
func New(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(format, FormatText) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// Workspace returns a slog attribute for the workspace identifier.
func Workspace(workspaceID string) slog.Attr {
	return slog.String(KeyWorkspace, workspaceID)
}

// Organization returns a slog attribute for the organization identifier.
func Organization(organizationID string) slog.Attr {
	return slog.String(KeyOrganization, organizationID)
}

// Platform returns a slog attribute for the integration platform.
func Platform(platform string) slog.Attr {
	return slog.String(KeyPlatform, platform)
}

// Property returns a slog attribute for an Analytics property.
func Property(propertyID string) slog.Attr {
	return slog.String(KeyProperty, propertyID)
}

// RequestID returns a slog attribute for the request id.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Redirect returns a slog attribute for a redirect target, passed through
// RedactURL so query parameters never reach the log.
func Redirect(raw string) slog.Attr {
	return slog.String(KeyRedirect, RedactURL(raw))
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// RedactURL strips the query string, fragment and user info from a URL.
// Unparseable input is replaced by a placeholder.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
