package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
retrieval:
  mode: keyword
  top_k: 5
answer:
  max_chunks: 2
  timeout: 45s
corpus:
  path: /var/lib/docqa/corpus.json
  chunk_size: 250
server:
  rate_limit: 2.5
  allow_local_sources: true
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"RETRIEVAL_MODE", "TOP_K", "MAX_CHUNKS", "ANSWER_TIMEOUT",
		"DOCQA_CORPUS", "CHUNK_SIZE", "DOCQA_RATE_LIMIT", "DOCQA_ALLOW_LOCAL_SOURCES",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":            "azure",
		"MODEL_MAX_TOKENS":          "8192",
		"AZURE_OPENAI_ENDPOINT":     "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":   "gpt-4o",
		"AZURE_OPENAI_API_VERSION":  "2025-04-01-preview",
		"EMBEDDING_PROVIDER":        "ollama",
		"EMBEDDING_MODEL":           "nomic-embed-text",
		"RETRIEVAL_MODE":            "keyword",
		"TOP_K":                     "5",
		"MAX_CHUNKS":                "2",
		"ANSWER_TIMEOUT":            "45s",
		"DOCQA_CORPUS":              "/var/lib/docqa/corpus.json",
		"CHUNK_SIZE":                "250",
		"DOCQA_RATE_LIMIT":          "2.5",
		"DOCQA_ALLOW_LOCAL_SOURCES": "true",
		"LOG_LEVEL":                 "debug",
		"LOG_FORMAT":                "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set before loading; it must not be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("model:\n  provider: ollama\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCQA_CONFIG", cfgPath)

	if got := resolveConfigPath(""); got != cfgPath {
		t.Errorf("resolveConfigPath() = %q, want %q", got, cfgPath)
	}
	if got := resolveConfigPath(filepath.Join(dir, "missing.yaml")); got != "" {
		t.Errorf("missing explicit path resolved to %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "DOCQA_TEST_FROM_DOTENV=dotenv\nDOCQA_TEST_PRESET=dotenv\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOCQA_TEST_FROM_DOTENV", "")
	os.Unsetenv("DOCQA_TEST_FROM_DOTENV")
	t.Setenv("DOCQA_TEST_PRESET", "shell")

	if err := LoadDotEnv(envPath, slog.Default()); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("DOCQA_TEST_FROM_DOTENV"); got != "dotenv" {
		t.Errorf("DOCQA_TEST_FROM_DOTENV = %q, want dotenv", got)
	}
	if got := os.Getenv("DOCQA_TEST_PRESET"); got != "shell" {
		t.Errorf("DOCQA_TEST_PRESET = %q, want shell (env must win)", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "absent.env"), slog.Default()); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}
}

func TestFloat64Str(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]string{0: "", 2.5: "2.5", 10: "10"} {
		if got := float64Str(in); got != want {
			t.Errorf("float64Str(%v) = %q, want %q", in, got, want)
		}
	}
}
