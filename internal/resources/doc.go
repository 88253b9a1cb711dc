// Package resources provides MCP resources for the relay.
// Resources are read-only data sources that MCP clients can fetch:
//
//   - garelay://tools lists every analytics tool and its parameters
//   - garelay://workspaces/{workspace_id}/connection reports whether a
//     workspace has Google Analytics connected, without exposing tokens
package resources
