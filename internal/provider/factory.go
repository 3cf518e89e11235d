package provider

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultMaxTokens       = 1000
	DefaultTemperature     = 0.2
	DefaultOllamaHost      = "http://localhost:11434"
	DefaultOllamaModel     = "llama3"
	DefaultOpenAIModel     = "gpt-4o"
	DefaultAzureAPIVersion = "2024-02-01"
	DefaultAWSRegion       = "us-east-1"
	DefaultGeminiModel     = "gemini-1.5-pro"
)

// ConfigFromEnv reads the chat model configuration from the environment.
//
//	MODEL_PROVIDER  ollama | openai | azure | bedrock | gemini (default: ollama)
//	Ollama          OLLAMA_HOST, OLLAMA_MODEL
//	OpenAI          OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL
//	Azure           AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT,
//	                AZURE_OPENAI_DEPLOYMENT, AZURE_OPENAI_API_VERSION
//	Bedrock         AWS_REGION, BEDROCK_MODEL_ID, AWS_BEARER_TOKEN_BEDROCK,
//	                BEDROCK_ENDPOINT
//	Gemini          GOOGLE_API_KEY, GEMINI_MODEL
//	Shared          MODEL_MAX_TOKENS, MODEL_TEMPERATURE
//
// Unparseable numeric values fall back to their defaults.
func ConfigFromEnv() *Config {
	return configFrom(os.Getenv)
}

// env reads configuration values through a lookup function so tests can
// supply a map instead of the process environment.
type env func(key string) string

func (e env) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

func (e env) integer(key string, def int) int {
	if n, err := strconv.Atoi(e.str(key, "")); err == nil {
		return n
	}
	return def
}

func (e env) float(key string, def float32) float32 {
	if f, err := strconv.ParseFloat(e.str(key, ""), 32); err == nil {
		return float32(f)
	}
	return def
}

func configFrom(e env) *Config {
	return &Config{
		Backend: Backend(strings.ToLower(e.str("MODEL_PROVIDER", string(BackendOllama)))),
		Ollama: ProviderOllama{
			Host:  e.str("OLLAMA_HOST", DefaultOllamaHost),
			Model: e.str("OLLAMA_MODEL", DefaultOllamaModel),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  e.str("OPENAI_API_KEY", ""),
			Model:   e.str("OPENAI_MODEL", DefaultOpenAIModel),
			BaseURL: e.str("OPENAI_BASE_URL", ""),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     e.str("AZURE_OPENAI_API_KEY", ""),
			Endpoint:   e.str("AZURE_OPENAI_ENDPOINT", ""),
			Deployment: e.str("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion: e.str("AZURE_OPENAI_API_VERSION", DefaultAzureAPIVersion),
		},
		Bedrock: ProviderBedrock{
			AWSRegion: e.str("AWS_REGION", DefaultAWSRegion),
			ModelID:   e.str("BEDROCK_MODEL_ID", ""),
			APIKey:    e.str("AWS_BEARER_TOKEN_BEDROCK", ""),
			Endpoint:  e.str("BEDROCK_ENDPOINT", ""),
		},
		Gemini: ProviderGemini{
			APIKey: e.str("GOOGLE_API_KEY", ""),
			Model:  e.str("GEMINI_MODEL", DefaultGeminiModel),
		},
		Tuning: SharedTuning{
			MaxTokens:   e.integer("MODEL_MAX_TOKENS", DefaultMaxTokens),
			Temperature: e.float("MODEL_TEMPERATURE", DefaultTemperature),
		},
	}
}

// New validates cfg and constructs the chat model for its backend.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	build := map[Backend]func(context.Context, *Config) (model.BaseChatModel, error){
		BackendOllama:  newOllama,
		BackendOpenAI:  newOpenAI,
		BackendAzure:   newAzure,
		BackendBedrock: newBedrock,
		BackendGemini:  newGemini,
	}
	return build[cfg.Backend](ctx, cfg)
}
