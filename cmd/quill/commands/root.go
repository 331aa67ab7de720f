// Package commands defines all Cobra CLI commands for the quill binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/audit"
	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quill",
		Short: "Quill — a grounded chat assistant backend",
		Long: `Quill is a chat assistant backend with retrieval-augmented generation.

It streams model completions over SSE, grounds answers in your own documents
(indexed in a Qdrant vector store) and in live web search results, and keeps
chat history in a local SQLite database.

Completions are served through OpenRouter; set OPENROUTER_API_KEY or use a
YAML config file (~/.quill/config.yaml).
See 'quill --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.quill/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewIngestCmd(),
		NewSourcesCmd(),
		NewVersionCmd(),
	)

	return root
}
