package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which loads documents,
// chunks them and replaces the persisted corpus.
func NewIngestCmd() *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "ingest [path|url]...",
		Short: "Ingest documents into the corpus",
		Long: `Load documents from files, directories or URLs, split them into fragments
and replace the persisted corpus with the result.

Supported formats are plain text, Markdown, HTML and PDF. Directories are walked
recursively, skipping hidden entries. Each run replaces the whole corpus.

Environment variables:
  DOCQA_CORPUS   Corpus store path; .json selects a JSON file, anything
                 else SQLite (default: ~/.docqa/corpus.db)
  CHUNK_SIZE     Target fragment size in words (default: 500)

Examples:
  docqa ingest ./handbook
  docqa ingest policy.pdf faq.md
  docqa ingest https://example.com/guide.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			rt, err := buildRuntime(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer rt.Close()

			size := rt.settings.ChunkSize
			if cmd.Flags().Changed("chunk-size") {
				size = chunkSize
			}
			pipeline := ingestion.NewPipeline(&ingestion.Config{ChunkSize: size})

			log.Info("starting ingestion", slog.Int("sources", len(args)), slog.Int("chunk_size", size))
			fragments, err := pipeline.Ingest(ctx, args, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			snap, err := rt.agent.Replace(ctx, fragments)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d fragments from %d sources (snapshot %s)\n",
				snap.Len(), len(snap.Sources()), snap.ID())
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Target fragment size in words (default: CHUNK_SIZE or 500)")

	return cmd
}
