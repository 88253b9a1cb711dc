// Package relay runs analytics queries on behalf of a workspace.
//
// A query loads the stored credentials of the workspace, refreshes the access
// token once when it has expired, writes the refreshed pair back to the
// store and then executes exactly one analytics tool. Every query works on
// its own token value; nothing about a workspace's credentials is kept
// between requests.
package relay
