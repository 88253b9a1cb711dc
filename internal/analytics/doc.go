// Package analytics runs Google Analytics 4 reports on behalf of a workspace.
//
// The reporting calls go to the Analytics Data API (analyticsdata/v1beta) and
// the account listings to the Admin API (analyticsadmin/v1beta). A Client is
// built per request from that request's token; nothing in this package holds
// credentials between calls.
//
// Tools form a closed set. Each Tool has exactly one handler in the registry,
// and Execute rejects any other name before an API call is made.
package analytics
