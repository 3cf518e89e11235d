package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/answer"
	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Settings holds the retrieval, answer and corpus settings resolved from the
// environment after Load and LoadDotEnv have run. Backend settings for chat
// and embedding models are read by the provider and embedder packages.
type Settings struct {
	// RetrievalMode decides how the capability is resolved at startup.
	RetrievalMode rag.Mode
	// TopK is the default number of ranked fragments per question.
	TopK int
	// ChunkSize is the target fragment size in words.
	ChunkSize int
	// MaxChunks caps the fragments sent to the model.
	MaxChunks int
	// AnswerTimeout bounds one generation call.
	AnswerTimeout time.Duration
	// CorpusPath is the corpus store location. Empty selects the default.
	CorpusPath string
}

// SettingsFromEnv parses the docqa settings from the environment, applying
// defaults for unset keys. Malformed values are errors, not silently ignored.
func SettingsFromEnv() (*Settings, error) {
	mode, err := rag.ParseMode(os.Getenv("RETRIEVAL_MODE"))
	if err != nil {
		return nil, fmt.Errorf("config: RETRIEVAL_MODE: %w", err)
	}

	s := &Settings{
		RetrievalMode: mode,
		CorpusPath:    strings.TrimSpace(os.Getenv("DOCQA_CORPUS")),
	}

	if s.TopK, err = positiveInt("TOP_K", rag.DefaultTopK); err != nil {
		return nil, err
	}
	if s.ChunkSize, err = positiveInt("CHUNK_SIZE", chunker.DefaultTargetSize); err != nil {
		return nil, err
	}
	if s.MaxChunks, err = positiveInt("MAX_CHUNKS", answer.DefaultMaxChunks); err != nil {
		return nil, err
	}

	s.AnswerTimeout = answer.DefaultTimeout
	if v := strings.TrimSpace(os.Getenv("ANSWER_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: ANSWER_TIMEOUT must be a positive duration, got %q", v)
		}
		s.AnswerTimeout = d
	}

	return s, nil
}

// positiveInt reads key as a positive integer, returning def when unset.
func positiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

// ServerSettings holds the HTTP server settings resolved from the
// environment.
type ServerSettings struct {
	Host              string
	Port              int
	RateLimit         float64
	RateBurst         int
	AllowLocalSources bool
}

// ServerSettingsFromEnv parses DOCQA_HOST, DOCQA_PORT, DOCQA_RATE_LIMIT,
// DOCQA_RATE_BURST and DOCQA_ALLOW_LOCAL_SOURCES.
func ServerSettingsFromEnv() (*ServerSettings, error) {
	s := &ServerSettings{Host: strings.TrimSpace(os.Getenv("DOCQA_HOST"))}
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}

	var err error
	if s.Port, err = positiveInt("DOCQA_PORT", 8080); err != nil {
		return nil, err
	}
	if s.Port > 65535 {
		return nil, fmt.Errorf("config: DOCQA_PORT must be at most 65535, got %d", s.Port)
	}
	if s.RateBurst, err = positiveInt("DOCQA_RATE_BURST", 20); err != nil {
		return nil, err
	}

	s.RateLimit = 10
	if v := strings.TrimSpace(os.Getenv("DOCQA_RATE_LIMIT")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("config: DOCQA_RATE_LIMIT must be a positive number, got %q", v)
		}
		s.RateLimit = f
	}

	if v := strings.TrimSpace(os.Getenv("DOCQA_ALLOW_LOCAL_SOURCES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: DOCQA_ALLOW_LOCAL_SOURCES must be a boolean, got %q", v)
		}
		s.AllowLocalSources = b
	}

	return s, nil
}
