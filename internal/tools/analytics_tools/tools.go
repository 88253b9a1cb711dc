package analytics_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/instrumentation"
	"github.com/teemow/garelay/internal/relay"
	"github.com/teemow/garelay/internal/tools/common"
)

// Querier runs a relay request. *relay.Dispatcher implements it.
type Querier interface {
	Query(ctx context.Context, req relay.Request) (interface{}, error)
}

// RegisterAnalyticsTools adds one MCP tool per analytics tool to s.
func RegisterAnalyticsTools(s *mcpserver.MCPServer, q Querier, metrics *instrumentation.Metrics) error {
	if q == nil {
		return fmt.Errorf("querier is required")
	}

	for _, def := range analytics.Definitions() {
		name := string(def.Tool)
		s.AddTool(newTool(def), common.InstrumentedToolHandler(name, metrics, queryHandler(q, name)))
	}
	return nil
}

func newTool(def analytics.Definition) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(def.Description),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString(common.WorkspaceArg,
			mcp.Required(),
			mcp.Description("Workspace whose Google Analytics connection to use"),
		),
	}

	for _, p := range def.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}

		switch p.Type {
		case analytics.ParamInteger:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case analytics.ParamArray:
			opts = append(opts, mcp.WithArray(p.Name, append(propOpts, mcp.WithStringItems())...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}

	return mcp.NewTool(string(def.Tool), opts...)
}

func queryHandler(q Querier, tool string) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		workspaceID, params, err := common.SplitWorkspace(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := q.Query(ctx, relay.Request{
			WorkspaceID: workspaceID,
			Tool:        tool,
			Params:      analytics.Params(params),
		})
		if err != nil {
			return mcp.NewToolResultError(relay.ErrorMessage(err)), nil
		}
		return common.JSONResult(data), nil
	}
}
