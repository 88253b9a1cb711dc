// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the relay.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds by method, route and status
//
// Google Analytics API:
//   - analytics_api_operations_total, analytics_api_operation_duration_seconds
//     by service (analyticsdata, analyticsadmin), operation and status
//
// OAuth and credentials:
//   - oauth_auth_total by result of the authorization callback
//   - oauth_token_refresh_total by result of dispatcher refreshes
//   - credential_sink_deliveries_total by sink and status
//
// Queries:
//   - relay_queries_total, relay_query_duration_seconds by tool and status;
//     the workspace label is added only with METRICS_DETAILED_LABELS=true
//   - mcp_tool_invocations_total by tool and status for calls made over MCP
//
// The Prometheus exporter writes to a registry owned by the Provider and is
// served by Provider.MetricsHandler, normally on the dedicated metrics port.
//
// # Tracing
//
// Spans are created per query (tool.<name>) and per Google API call
// (google.<service>.<operation>). Tracing is off unless TRACING_EXPORTER is
// otlp or stdout.
//
// # Configuration
//
// ConfigFromEnv reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE,
// OTEL_TRACES_SAMPLER_ARG, OTEL_SERVICE_NAME, METRICS_DETAILED_LABELS and the
// AUDIT_LOGGING_* variables.
package instrumentation
