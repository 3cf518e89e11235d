package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpHealthCheck probes a backend by issuing a GET against a cheap listing
// endpoint. Any 2xx response counts as healthy.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

// HealthCheck implements HealthCheckConfig.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health check request: %w", err)
	}
	req.Header = h.header.Clone()

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a zero-cost probe for the configured backend, or
// nil when the backend has none and readiness must fall back to a
// single-token generate call.
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 10 * time.Second}
	header := http.Header{}

	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			header: header,
			client: client,
		}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		header.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
		return &httpHealthCheck{
			url:    strings.TrimRight(base, "/") + "/models",
			header: header,
			client: client,
		}
	case BackendAzure:
		az := cfg.AzureOpenAI
		header.Set("api-key", az.APIKey)
		return &httpHealthCheck{
			url:    strings.TrimRight(az.Endpoint, "/") + "/openai/models?api-version=" + az.APIVersion,
			header: header,
			client: client,
		}
	case BackendGemini:
		header.Set("x-goog-api-key", cfg.Gemini.APIKey)
		return &httpHealthCheck{
			url:    "https://generativelanguage.googleapis.com/v1beta/models?pageSize=1",
			header: header,
			client: client,
		}
	default:
		return nil
	}
}
