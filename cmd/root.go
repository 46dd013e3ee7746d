package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the tasksage application
var rootCmd = &cobra.Command{
	Use:   "tasksage",
	Short: "Task management API with an AI assistant",
	Long: `tasksage is a task management HTTP API with an integrated AI assistant.

It stores users and tasks in SQLite, exposes JWT-authenticated CRUD
endpoints, and answers natural-language questions about a user's tasks
by letting the Anthropic model call local analysis tools over MCP
(Model Context Protocol).`,
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
	rootCmd.SetVersionTemplate(`{{printf "tasksage version %s\n" .Version}}`)

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
}
