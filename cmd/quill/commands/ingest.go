package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/ingestion"
	"github.com/quillchat/quill/internal/logging"
)

// NewIngestCmd constructs the `quill ingest` command, which indexes local
// files or URLs into the document library.
func NewIngestCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ingest [file|url ...]",
		Short: "Index documents into the Quill document library",
		Long: `Read local files or fetch HTTP(S) URLs and index them into the
Qdrant-backed document library. Indexed documents ground chat completions
via retrieval-augmented generation.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: quill-documents)
  EMBEDDING_PROVIDER   Embedding backend: openai, ollama (default: openai)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  quill ingest notes.txt meeting-minutes.md
  quill ingest https://example.com/handbook.txt
  quill ingest --name "handbook" https://example.com/very/long/path.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if name != "" && len(args) > 1 {
				return fmt.Errorf("ingest: --name applies to a single source only")
			}

			library, _, closeLibrary, err := buildLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeLibrary()
			if library == nil {
				return fmt.Errorf("ingest: QDRANT_HOST must be set to index documents")
			}

			pipeline, err := ingestion.NewPipeline(library, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			sources := make([]ingestion.Source, 0, len(args))
			for _, loc := range args {
				sources = append(sources, ingestion.Source{Location: loc, Name: name})
			}

			if err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete", "sources", len(sources))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Source name override (single source only)")

	return cmd
}
