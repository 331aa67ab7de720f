package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/logging"
)

// NewSourcesCmd constructs the `quill sources` command for inspecting and
// pruning the document library.
func NewSourcesCmd() *cobra.Command {
	var remove string
	var clear bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List or remove indexed document sources",
		Long: `List the sources currently indexed in the document library, remove a
single source, or clear the whole index.

Examples:
  quill sources
  quill sources --remove notes.txt
  quill sources --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if remove != "" && clear {
				return fmt.Errorf("sources: --remove and --clear are mutually exclusive")
			}

			library, _, closeLibrary, err := buildLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("sources: %w", err)
			}
			defer closeLibrary()
			if library == nil {
				return fmt.Errorf("sources: QDRANT_HOST must be set to inspect the document index")
			}

			switch {
			case clear:
				if err := library.Clear(ctx); err != nil {
					return fmt.Errorf("sources: %w", err)
				}
				fmt.Println("document index cleared")

			case remove != "":
				n, err := library.DeleteSource(ctx, remove)
				if err != nil {
					return fmt.Errorf("sources: %w", err)
				}
				fmt.Printf("removed %q (%d chunks)\n", remove, n)

			default:
				names, err := library.SourceNames(ctx)
				if err != nil {
					return fmt.Errorf("sources: %w", err)
				}
				stats, err := library.Stats(ctx)
				if err != nil {
					return fmt.Errorf("sources: %w", err)
				}
				if len(names) == 0 {
					fmt.Println("no documents indexed")
					return nil
				}
				for _, n := range names {
					fmt.Println(n)
				}
				fmt.Printf("\n%d documents, %d chunks\n", stats.TotalDocuments, stats.TotalChunks)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&remove, "remove", "r", "", "Remove a single source by name")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every indexed document")

	return cmd
}
