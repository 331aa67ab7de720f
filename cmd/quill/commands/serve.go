package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/retrieval"
	"github.com/quillchat/quill/internal/server"
	"github.com/quillchat/quill/internal/store"
)

// NewServeCmd constructs the `quill serve` command, which starts the HTTP
// server exposing the completion, document, and session APIs.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Quill HTTP server",
		Long: `Start the Quill HTTP server on localhost.

The server exposes a REST/SSE API: streaming chat completions grounded in
your indexed documents and live web search, document index management, and
chat session persistence.

Examples:
  quill serve
  quill serve --port 9090
  TAVILY_API_KEY=tvly-... quill serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			apiKey := os.Getenv("OPENROUTER_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("serve: OPENROUTER_API_KEY is required")
			}

			client := llm.NewClient(&llm.Config{
				APIKey:       apiKey,
				BaseURL:      os.Getenv("OPENROUTER_BASE_URL"),
				DefaultModel: os.Getenv("DEFAULT_MODEL"),
			})

			library, qdrantStore, closeLibrary, err := buildLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeLibrary()

			webClient := buildWebSearch(log)

			// Nil oracle interfaces disable that source in the aggregator.
			var docs retrieval.DocumentSearcher
			if library != nil {
				docs = library
			}
			var web retrieval.WebSearcher
			if webClient.Enabled() {
				web = webClient
			}
			gatherer := retrieval.New(docs, web, retrieval.Config{})

			// Open the session store. QUILL_DB overrides the default path
			// (~/.quill/sessions.db). Set to "disabled" to skip persistence.
			var sessions store.SessionStore
			dbPath := os.Getenv("QUILL_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("sessions: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ss, ssErr := store.Open(dbPath)
					if ssErr != nil {
						log.Warn("sessions: failed to open store, disabling", slog.Any("error", ssErr))
					} else {
						sessions = ss
						defer func() { _ = ss.Close() }()
						log.Info("sessions: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("sessions: disabled via QUILL_DB=disabled")
			}

			var pingers []server.Pinger
			if qdrantStore != nil {
				pingers = append(pingers, server.NewVectorStorePinger(qdrantStore, "qdrant"))
			}
			pingers = append(pingers, server.NewProviderPinger(
				getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"), apiKey))

			deps := server.Deps{
				Gatherer: gatherer,
				Streamer: client,
				Sessions: sessions,
			}
			if library != nil {
				deps.Library = library
			}

			srv, err := server.New(deps, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     pingers,
				APIKey:      os.Getenv("QUILL_API_KEY"),
				CORSOrigins: config.CORSOrigins(),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
