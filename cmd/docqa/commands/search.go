package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
)

// previewWords bounds the fragment preview printed per search result.
const previewWords = 24

// NewSearchCmd constructs the `docqa search` command, which ranks the corpus
// against a question without calling a model.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search [question]",
		Short: "Rank ingested fragments against a question without an LLM",
		Long: `Rank the ingested fragments against a question and print the best
matches with their scores. No model provider is contacted, which makes this
useful for checking what context 'docqa ask' would send.

Examples:
  docqa search "refund policy"
  docqa search --top-k 10 "deployment regions"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			rt, err := buildRuntime(ctx, log, false)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer rt.Close()

			ranked, snap, err := rt.agent.Search(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ranked) == 0 {
				fmt.Fprintln(out, "No documents have been ingested yet.")
				return nil
			}

			fmt.Fprintf(out, "snapshot %s, %s retrieval\n\n", snap.ID(), rt.agent.Capability())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSCORE\tSOURCE\tTEXT")
			for i, f := range ranked {
				fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", i+1, f.Score, f.Source, preview(f.Text))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of fragments to rank (default: TOP_K or 3)")

	return cmd
}

// preview collapses whitespace and truncates text to previewWords words.
func preview(text string) string {
	words := strings.Fields(text)
	if len(words) <= previewWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:previewWords], " ") + " ..."
}
