package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/prompt"
	"github.com/quillchat/quill/internal/retrieval"
)

// NewAskCmd constructs the `quill ask` command, which sends a single question
// through the full retrieval pipeline and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var model string
	var noRAG bool
	var noWeb bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask Quill a question from the command line",
		Long: `Ask Quill a single question and stream the answer to stdout.

The question runs through the same retrieval pipeline as the HTTP API:
indexed documents and live web search ground the answer, and the sources
used are printed before the response.

Examples:
  quill ask "what does my notes.txt say about deadlines?"
  quill ask --no-web "summarise the indexed documents"
  quill ask --model anthropic/claude-sonnet-4 "explain CRDTs simply"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			apiKey := os.Getenv("OPENROUTER_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("ask: OPENROUTER_API_KEY is required")
			}

			client := llm.NewClient(&llm.Config{
				APIKey:       apiKey,
				BaseURL:      os.Getenv("OPENROUTER_BASE_URL"),
				DefaultModel: os.Getenv("DEFAULT_MODEL"),
			})

			library, _, closeLibrary, err := buildLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeLibrary()

			webClient := buildWebSearch(log)

			var docs retrieval.DocumentSearcher
			if library != nil {
				docs = library
			}
			var web retrieval.WebSearcher
			if webClient.Enabled() {
				web = webClient
			}
			gatherer := retrieval.New(docs, web, retrieval.Config{})

			question := strings.Join(args, " ")
			items := gatherer.Gather(ctx, question, !noRAG, !noWeb)

			if len(items) > 0 {
				fmt.Fprintln(os.Stderr, "Sources:")
				for _, item := range items {
					fmt.Fprintf(os.Stderr, "  [%s] %s (%.3f)\n", item.Type, item.Title, item.Similarity)
				}
				fmt.Fprintln(os.Stderr)
			}

			messages := []llm.Message{
				{Role: "system", Content: prompt.Build(items, "")},
				{Role: "user", Content: question},
			}

			for ev := range client.StreamCompletion(ctx, messages, llm.Options{Model: model}) {
				switch ev.Type {
				case llm.EventContent:
					fmt.Print(ev.Text)
				case llm.EventError:
					return fmt.Errorf("ask: %s", ev.Message)
				case llm.EventDone:
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model identifier (default: DEFAULT_MODEL)")
	cmd.Flags().BoolVar(&noRAG, "no-rag", false, "Skip the document index")
	cmd.Flags().BoolVar(&noWeb, "no-web", false, "Skip web search")

	return cmd
}
