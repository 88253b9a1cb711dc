package instrumentation

import (
	"crypto/sha256"
	"encoding/hex"
)

// Label helpers that keep metric and log cardinality bounded.

// RouteLabel returns the route pattern for the route label. Requests that
// matched no route share one "unmatched" series instead of one per path.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

// AnonymizeWorkspace returns a stable, non-reversible identifier for a
// workspace id, for logs that must not carry the raw id.
//
//	AnonymizeWorkspace("")   // "unknown"
//	AnonymizeWorkspace("w1") // "ws_" + 12 hex chars
func AnonymizeWorkspace(workspaceID string) string {
	if workspaceID == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(workspaceID))
	return "ws_" + hex.EncodeToString(sum[:6])
}

// Google API operation names. Exchange and refresh belong to ServiceOAuth.
const (
	OperationRunReport         = "run_report"
	OperationRunRealtimeReport = "run_realtime_report"
	OperationList              = "list"
	OperationGet               = "get"
	OperationExchange          = "exchange"
	OperationRefresh           = "refresh"
)
