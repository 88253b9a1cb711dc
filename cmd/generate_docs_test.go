package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/garelay/internal/analytics"
)

func TestToolSection(t *testing.T) {
	tests := map[analytics.Tool]string{
		analytics.ToolTopPages:          sectionReports,
		analytics.ToolRunRealtimeReport: sectionReports,
		analytics.ToolListProperties:    sectionAdmin,
		analytics.ToolCustomDefinitions: sectionAdmin,
	}
	for tool, want := range tests {
		assert.Equal(t, want, toolSection(tool), string(tool))
	}
}

func TestGroupDefinitions_KeepsEveryTool(t *testing.T) {
	sections := groupDefinitions(analytics.Definitions())
	require.Len(t, sections, 2)

	var names []analytics.Tool
	for _, s := range sections {
		for _, def := range s.tools {
			assert.Equal(t, s.title, toolSection(def.Tool))
			names = append(names, def.Tool)
		}
	}
	assert.ElementsMatch(t, analytics.AllTools, names)
}

func TestRenderToolsReference_Scope(t *testing.T) {
	doc := renderToolsReference(analytics.Definitions())

	section := func(tool analytics.Tool) string {
		start := strings.Index(doc, "### "+string(tool)+"\n")
		require.GreaterOrEqual(t, start, 0, tool)
		rest := doc[start+1:]
		if end := strings.Index(rest, "\n### "); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}

	assert.Contains(t, section(analytics.ToolTopPages), "**Scope:** property")
	assert.Contains(t, section(analytics.ToolTopPages), "| `property_id` | string | yes |")
	assert.Contains(t, section(analytics.ToolTopPages), "| `limit` | integer | no |")
	assert.Contains(t, section(analytics.ToolListProperties), "**Scope:** account")
	assert.NotContains(t, section(analytics.ToolListProperties), "`property_id`")
}

func TestRunGenerateDocs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tools.md")
	require.NoError(t, runGenerateDocs(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(data)

	assert.True(t, strings.HasPrefix(doc, "# MCP Tools Reference"))
	assert.Contains(t, doc, "- [Admin Tools](#admin-tools)")
	assert.Contains(t, doc, "- [Report Tools](#report-tools)")
	for _, tool := range analytics.AllTools {
		assert.Contains(t, doc, "### "+string(tool))
	}
	assert.Equal(t, len(analytics.AllTools), strings.Count(doc, "| `workspace_id` | string | yes |"))
}
