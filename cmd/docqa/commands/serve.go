package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server.

Endpoints:
  POST /api/ask      answer a question against the current corpus
  POST /api/ingest   replace the corpus from URLs or inline documents
  GET  /api/corpus   describe the current corpus snapshot
  GET  /api/health   liveness probe
  GET  /api/ready    readiness probe (model, store, embedder)
  GET  /metrics      Prometheus metrics

Local paths in POST /api/ingest are rejected unless
DOCQA_ALLOW_LOCAL_SOURCES=true.

Examples:
  docqa serve
  docqa serve --port 9090
  MODEL_PROVIDER=openai docqa serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			srvSettings, err := config.ServerSettingsFromEnv()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if cmd.Flags().Changed("host") {
				srvSettings.Host = host
			}
			if cmd.Flags().Changed("port") {
				srvSettings.Port = port
			}

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			rt, err := buildRuntime(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.Close()

			pipeline := ingestion.NewPipeline(&ingestion.Config{ChunkSize: rt.settings.ChunkSize})

			srv, err := server.New(rt.agent, pipeline, &server.Config{
				Host:              srvSettings.Host,
				Port:              srvSettings.Port,
				AllowLocalSources: srvSettings.AllowLocalSources,
				Logger:            log,
				Pingers:           buildPingers(rt),
				RateLimit:         srvSettings.RateLimit,
				RateBurst:         srvSettings.RateBurst,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting",
				slog.String("provider", string(rt.providerCfg.Backend)),
				slog.Bool("allow_local_sources", srvSettings.AllowLocalSources),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (default: DOCQA_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (default: DOCQA_PORT)")

	return cmd
}
