// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. Ollama and OpenAI/Azure talk
// plain HTTP; Gemini goes through the genai SDK.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel  = "nomic-embed-text"
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultBedrockModel = "amazon.titan-embed-text-v2"
	defaultGeminiModel  = "text-embedding-004"
)

// BackendNone disables embeddings entirely; the process ranks by keyword.
const BackendNone = "none"

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of ollama, openai, azure, gemini, bedrock or none.
	Backend string
	// Model is the embedding model (deployment name on Azure).
	Model string
	// Dimensions requests a specific vector length when > 0.
	Dimensions int
	// APIKey authenticates against openai, azure and gemini.
	APIKey string
	// Endpoint is the backend base URL.
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Explicit records whether EMBEDDING_PROVIDER was set rather than
	// inherited from MODEL_PROVIDER.
	Explicit bool
}

// ConfigFromEnv resolves the embedding configuration using cascading
// defaults that inherit from the chat provider configuration when
// embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else ollama
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS requests a specific vector size
func ConfigFromEnv() Config {
	cfg := Config{
		Backend:    strings.ToLower(getEnv("EMBEDDING_PROVIDER")),
		Model:      getEnv("EMBEDDING_MODEL"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
	}
	cfg.Explicit = cfg.Backend != ""
	if cfg.Backend == "" {
		cfg.Backend = strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	}

	switch cfg.Backend {
	case "ollama":
		cfg.Model = orDefault(cfg.Model, defaultOllamaModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
	case "openai":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("OPENAI_API_KEY"))
		cfg.Endpoint = orDefault(cfg.Endpoint, "https://api.openai.com/v1")
	case "azure":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("AZURE_OPENAI_API_KEY"))
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
	case "gemini":
		cfg.Model = orDefault(cfg.Model, defaultGeminiModel)
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("GOOGLE_API_KEY"))
	case "bedrock":
		cfg.Model = orDefault(cfg.Model, defaultBedrockModel)
	}
	return cfg
}

// New constructs a rag.Embedder for cfg. BackendNone returns a nil
// Embedder and a nil error; callers then rank by keyword.
func New(ctx context.Context, cfg Config) (rag.Embedder, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil

	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model, Dimensions: cfg.Dimensions}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		emb, err := NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BaseURL:    cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil

	case "bedrock":
		return nil, fmt.Errorf("embedder: bedrock embedding is not supported (model: %s): set EMBEDDING_PROVIDER to ollama, openai, azure, gemini or none", cfg.Model)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q: valid values: ollama, openai, azure, gemini, none", cfg.Backend)
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
