package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the garelay application
var rootCmd = &cobra.Command{
	Use:   "garelay",
	Short: "Google Analytics OAuth relay",
	Long: `garelay lets a workspace connect a Google Analytics account through OAuth2,
keeps the resulting credentials and runs analytics reports on the workspace's
behalf, refreshing expired access tokens on the way.

Reports are available over a JSON HTTP API and as MCP tools.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "garelay version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
