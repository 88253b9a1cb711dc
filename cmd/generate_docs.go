package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/tools/common"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all analytics MCP tools.
The reference is rendered from the same tool definitions the /mcp endpoint
and /query serve, so argument names and requirements always match.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	markdown := renderToolsReference(analytics.Definitions())

	if outputFile == "" {
		fmt.Print(markdown)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

// docSection is one heading of the reference and the tools under it.
type docSection struct {
	title string
	tools []analytics.Definition
}

func (s docSection) anchor() string {
	return strings.ToLower(strings.ReplaceAll(s.title, " ", "-"))
}

const (
	sectionReports = "Report Tools"
	sectionAdmin   = "Admin Tools"
)

// toolSection places a tool under the Admin or Report heading.
func toolSection(tool analytics.Tool) string {
	switch tool {
	case analytics.ToolListProperties, analytics.ToolPropertyDetails,
		analytics.ToolCustomDefinitions, analytics.ToolGoogleAdsLinks:
		return sectionAdmin
	}
	return sectionReports
}

// groupDefinitions keeps definition order within each section.
func groupDefinitions(defs []analytics.Definition) []docSection {
	sections := []docSection{{title: sectionReports}, {title: sectionAdmin}}
	for _, def := range defs {
		for i := range sections {
			if sections[i].title == toolSection(def.Tool) {
				sections[i].tools = append(sections[i].tools, def)
			}
		}
	}
	return sections
}

func renderToolsReference(defs []analytics.Definition) string {
	var sb strings.Builder
	sections := groupDefinitions(defs)

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools served on the garelay `/mcp` endpoint. The same names and arguments are accepted by `POST /query`.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, s := range sections {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", s.title, s.anchor())
	}
	sb.WriteString("\n")

	sb.WriteString("## Workspaces\n\n")
	fmt.Fprintf(&sb, "Every tool takes a required `%s` argument naming the workspace whose stored Google Analytics credentials are used.\n", common.WorkspaceArg)
	sb.WriteString("A workspace that has not completed `/auth/init` gets `Not connected to Google Analytics`. Expired access tokens are refreshed and persisted before the report runs.\n\n")

	for _, s := range sections {
		fmt.Fprintf(&sb, "## %s\n\n", s.title)
		for _, def := range s.tools {
			writeDefinition(&sb, def)
		}
	}

	return sb.String()
}

func writeDefinition(w io.Writer, def analytics.Definition) {
	fmt.Fprintf(w, "### %s\n\n", def.Tool)
	if def.Description != "" {
		fmt.Fprintf(w, "%s\n\n", def.Description)
	}

	scope := "account"
	if analytics.RequiresProperty(def.Tool) {
		scope = "property"
	}
	fmt.Fprintf(w, "**Scope:** %s\n\n", scope)

	fmt.Fprintln(w, "| Argument | Type | Required | Description |")
	fmt.Fprintln(w, "|---|---|---|---|")
	writeParamRow(w, analytics.ParamSpec{
		Name:        common.WorkspaceArg,
		Type:        analytics.ParamString,
		Description: "Workspace whose Google Analytics connection to use",
		Required:    true,
	})
	for _, p := range def.Params {
		writeParamRow(w, p)
	}
	fmt.Fprintln(w)
}

func writeParamRow(w io.Writer, p analytics.ParamSpec) {
	required := "no"
	if p.Required {
		required = "yes"
	}
	desc := strings.ReplaceAll(p.Description, "|", `\|`)
	fmt.Fprintf(w, "| `%s` | %s | %s | %s |\n", p.Name, p.Type, required, desc)
}
