// Package common provides helpers shared by MCP tool implementations:
// argument extraction, result encoding and handler instrumentation.
package common
