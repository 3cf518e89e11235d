package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/agent"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewAskCmd constructs the `docqa ask` command, which answers one question
// against the persisted corpus and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var topK int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested documents",
		Long: `Ask a natural language question about the ingested documents.

The question is ranked against the corpus, the best fragments are sent to
the configured model as context, and the answer is printed together with
the sources it was grounded on.

Examples:
  docqa ask "what is the refund policy?"
  docqa ask --top-k 5 "which regions does the service run in?"
  docqa ask --json "who owns the billing pipeline?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			rt, err := buildRuntime(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.Close()

			resp, err := rt.agent.Ask(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(newAskOutput(resp)); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			} else {
				fmt.Fprintln(out, resp.Answer)
				fmt.Fprintf(out, "\nSources: %s\n", sourceList(resp.Sources))
			}

			if resp.Failure != nil {
				return fmt.Errorf("ask: %w", resp.Failure)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of fragments to rank (default: TOP_K or 3)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")

	return cmd
}

// askOutput is the --json rendering of an agent response.
type askOutput struct {
	Answer     string          `json:"answer"`
	Sources    []string        `json:"sources"`
	Fragments  []fragmentScore `json:"fragments"`
	Capability string          `json:"capability"`
	SnapshotID string          `json:"snapshot_id"`
	Failure    string          `json:"failure,omitempty"`
}

type fragmentScore struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func newAskOutput(resp *agent.Response) askOutput {
	out := askOutput{
		Answer:     resp.Answer,
		Sources:    resp.Sources,
		Fragments:  make([]fragmentScore, 0, len(resp.Fragments)),
		Capability: resp.Capability.String(),
		SnapshotID: resp.SnapshotID,
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	for _, f := range resp.Fragments {
		out.Fragments = append(out.Fragments, fragmentScore{Source: f.Source, Score: f.Score, Text: f.Text})
	}
	if resp.Failure != nil {
		out.Failure = string(resp.Failure.Reason)
	}
	return out
}
