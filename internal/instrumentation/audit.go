package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// QueryAudit describes one analytics query for the audit trail.
//
// WorkspaceID identifies a tenant. Operational logs carry the anonymized
// form only; LogAuditAttrs includes the raw id.
type QueryAudit struct {
	Tool        string
	WorkspaceID string
	Property    string

	// Refreshed is set when the access token was refreshed for this query.
	Refreshed bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewQueryAudit starts timing a query.
func NewQueryAudit(tool, workspaceID string) *QueryAudit {
	return &QueryAudit{Tool: tool, WorkspaceID: workspaceID, StartTime: time.Now()}
}

// Status returns "success" or "error".
func (q *QueryAudit) Status() string {
	if q.Success {
		return StatusSuccess
	}
	return StatusError
}

func (q *QueryAudit) attrs(workspace slog.Attr) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", q.Tool),
		workspace,
		slog.Duration("duration", q.Duration),
		slog.Bool("success", q.Success),
		slog.Bool("token_refreshed", q.Refreshed),
	}
	if q.Property != "" {
		attrs = append(attrs, slog.String("property", q.Property))
	}
	if q.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", q.TraceID), slog.String("span_id", q.SpanID))
	}
	if q.Error != "" {
		attrs = append(attrs, slog.String("error", q.Error))
	}
	return attrs
}

// LogAttrs returns attributes with the workspace id anonymized.
func (q *QueryAudit) LogAttrs() []slog.Attr {
	return q.attrs(slog.String("workspace", AnonymizeWorkspace(q.WorkspaceID)))
}

// LogAuditAttrs returns attributes including the raw workspace id.
func (q *QueryAudit) LogAuditAttrs() []slog.Attr {
	return q.attrs(slog.String("workspace_id", q.WorkspaceID))
}

// WithSpanContext copies the trace and span ids of the span in ctx.
func (q *QueryAudit) WithSpanContext(ctx context.Context) *QueryAudit {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		q.TraceID = sc.TraceID().String()
		q.SpanID = sc.SpanID().String()
	}
	return q
}

// Complete stops the timer and records the outcome.
func (q *QueryAudit) Complete(err error) *QueryAudit {
	q.Duration = time.Since(q.StartTime)
	q.Success = err == nil
	if err != nil {
		q.Error = err.Error()
	}
	return q
}

// AuditLogger writes QueryAudit records.
type AuditLogger struct {
	logger           *slog.Logger
	includeWorkspace bool
	enabled          bool
}

// NewAuditLoggerWithConfig creates an AuditLogger from config.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:           logger,
		includeWorkspace: config.IncludeWorkspace,
		enabled:          config.Enabled,
	}
}

// LogQuery logs q at info level on success and warn level on failure.
// A nil or disabled AuditLogger does nothing.
func (al *AuditLogger) LogQuery(q *QueryAudit) {
	if al == nil || !al.enabled {
		return
	}

	attrs := q.LogAttrs()
	if al.includeWorkspace {
		attrs = q.LogAuditAttrs()
	}

	level, msg := slog.LevelInfo, "query_executed"
	if !q.Success {
		level, msg = slog.LevelWarn, "query_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
