// Package analytics_tools exposes the relay's report tools over MCP.
//
// Every tool in analytics.Definitions is registered under its own name.
// Each takes a required workspace_id argument naming the workspace whose
// stored Google Analytics connection is used; the remaining arguments are
// the tool's report parameters. Calls go through the same Querier as
// POST /query, so credential loading and token refresh behave identically.
//
// # Available Tools
//
//   - get_traffic_overview, get_top_pages, get_traffic_sources
//   - list_properties, get_property_details
//   - run_report, run_realtime_report
//   - get_custom_dimensions_and_metrics, list_google_ads_links
//
// Errors are returned as tool results with IsError set. A workspace without
// a connection yields "Not connected to Google Analytics".
package analytics_tools
