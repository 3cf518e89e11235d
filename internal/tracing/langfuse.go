// Package tracing enables optional Langfuse tracing of chat model calls.
// The handler is registered globally with eino's callback system, so every
// generation made by the answer composer is traced once Setup has run.
package tracing

import (
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds the Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := strings.TrimSpace(os.Getenv("LANGFUSE_HOST"))
	if host == "" {
		host = DefaultHost
	}
	return Config{
		Host:      host,
		PublicKey: strings.TrimSpace(os.Getenv("LANGFUSE_PUBLIC_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("LANGFUSE_SECRET_KEY")),
	}
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool { return c.PublicKey != "" && c.SecretKey != "" }

// Setup registers the Langfuse handler globally when cfg is enabled and
// returns a flush function that must be called before process exit. When
// tracing is disabled the returned function is a no-op.
func Setup(cfg Config, log *slog.Logger) func() {
	if !cfg.Enabled() {
		log.Debug("tracing: langfuse disabled, keys not set")
		return func() {}
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)

	log.Info("tracing: langfuse enabled", slog.String("host", cfg.Host))
	return flush
}
