package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are not suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check run before the startup capability probe.
// It never fails: a misconfigured embedder only costs semantic ranking, and
// the probe reports that. It warns when the backend was inherited from
// MODEL_PROVIDER, when credentials are obviously missing, and when the model
// name looks like a chat model.
func Validate(cfg Config, log *slog.Logger) {
	if cfg.Backend == BackendNone {
		log.Info("embedder: disabled by EMBEDDING_PROVIDER=none; keyword retrieval only")
		return
	}

	if !cfg.Explicit && cfg.Backend != "ollama" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", cfg.Backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure/gemini/none) to be explicit"),
		)
	}

	switch cfg.Backend {
	case "openai", "azure", "gemini":
		if cfg.APIKey == "" {
			log.Warn("embedder: no API key found for embedding backend",
				slog.String("backend", cfg.Backend),
				slog.String("hint", "set EMBEDDING_API_KEY or the backend's API key variable"),
			)
		}
	}
	if cfg.Backend == "azure" && cfg.Endpoint == "" {
		log.Warn("embedder: no Azure endpoint found",
			slog.String("hint", "set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT"),
		)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
}
