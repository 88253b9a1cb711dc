// Package server exposes the relay over HTTP.
//
// Routes:
//
//	GET  /                    service info
//	GET  /health              {"status":"healthy"}
//	GET  /healthz, /readyz    Kubernetes health checks
//	GET  /healthz/detailed    readiness plus uptime
//	GET  /auth/init           builds the Google consent URL
//	GET  /callback            completes the authorization (alias /auth/callback)
//	POST /query               runs an analytics tool for a workspace
//	POST /disconnect          clears a workspace's credentials
//	POST /mcp                 MCP streamable HTTP endpoint
//
// /query, /disconnect and /mcp are only mounted when the relay has direct
// access to the credential store. In bridge mode the callback hands tokens to
// an external backend and nothing else is served.
//
// The callback never answers with an error status. Every outcome ends in a
// redirect to the caller's redirect_url carrying either success=true or
// error=auth_failed.
//
// Prometheus metrics are served separately by MetricsServer so that they are
// not reachable through the public listener.
package server
