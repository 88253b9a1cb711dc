package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/credentials"
)

const (
	ToolsURI              = "garelay://tools"
	ConnectionURITemplate = "garelay://workspaces/{workspace_id}/connection"
)

type toolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type toolEntry struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []toolParam `json:"params"`
}

// Connection is the public view of a workspace's credential record.
type Connection struct {
	WorkspaceID string     `json:"workspace_id"`
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	Status      string     `json:"status,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// RegisterRelayResources registers the tool catalog and the per-workspace
// connection template on s.
func RegisterRelayResources(s *mcpserver.MCPServer, store credentials.Store) error {
	if store == nil {
		return fmt.Errorf("credential store is required")
	}

	s.AddResource(
		mcp.NewResource(ToolsURI, "Analytics Tools",
			mcp.WithResourceDescription("Every analytics tool with its parameters"),
			mcp.WithMIMEType("application/json"),
		),
		handleTools,
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(ConnectionURITemplate, "Workspace Connection",
			mcp.WithTemplateDescription("Google Analytics connection status of a workspace"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleConnection(ctx, request, store)
		},
	)

	return nil
}

func handleTools(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	defs := analytics.Definitions()
	entries := make([]toolEntry, 0, len(defs))
	for _, def := range defs {
		params := make([]toolParam, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, toolParam{
				Name:        p.Name,
				Type:        string(p.Type),
				Description: p.Description,
				Required:    p.Required,
			})
		}
		entries = append(entries, toolEntry{Name: string(def.Tool), Description: def.Description, Params: params})
	}
	return jsonContents(request.Params.URI, entries)
}

func handleConnection(ctx context.Context, request mcp.ReadResourceRequest, store credentials.Store) ([]mcp.ResourceContents, error) {
	workspaceID := templateArg(request.Params.Arguments, "workspace_id")
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace_id is required")
	}

	conn := Connection{WorkspaceID: workspaceID, Platform: credentials.PlatformGoogleAnalytics}

	rec, err := store.Get(ctx, workspaceID, credentials.PlatformGoogleAnalytics)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load connection: %w", err)
	default:
		conn.Connected = rec.HasCredentials()
		conn.Status = string(rec.Status)
		if rec.ExpiryDate != 0 {
			expires := credentials.ExpiryTime(rec.ExpiryDate)
			conn.ExpiresAt = &expires
		}
		if !rec.UpdatedAt.IsZero() {
			updated := rec.UpdatedAt
			conn.UpdatedAt = &updated
		}
	}

	return jsonContents(request.Params.URI, conn)
}

// templateArg reads a matched URI template variable. mcp-go passes them as
// []string.
func templateArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
