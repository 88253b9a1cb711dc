package common

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// WorkspaceArg is the argument naming the workspace a tool acts for.
const WorkspaceArg = "workspace_id"

// SplitWorkspace returns the workspace id from args and the remaining
// arguments. args is not modified.
func SplitWorkspace(args map[string]interface{}) (string, map[string]interface{}, error) {
	workspaceID, _ := args[WorkspaceArg].(string)
	if workspaceID == "" {
		return "", nil, fmt.Errorf("%s is required", WorkspaceArg)
	}

	rest := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k != WorkspaceArg {
			rest[k] = v
		}
	}
	return workspaceID, rest, nil
}

// JSONResult encodes v as indented JSON text.
func JSONResult(v interface{}) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(out))
}
