package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Capability is the scoring strategy chosen once per process.
type Capability int

const (
	// CapabilityKeyword ranks by lexical overlap. Always available.
	CapabilityKeyword Capability = iota
	// CapabilitySemantic ranks by embedding cosine similarity.
	CapabilitySemantic
)

// String returns the lowercase capability name used in logs, metrics and
// API responses.
func (c Capability) String() string {
	switch c {
	case CapabilitySemantic:
		return "semantic"
	case CapabilityKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Mode is the operator's RETRIEVAL_MODE preference.
type Mode string

const (
	// ModeAuto uses semantic ranking when the embedder answers a startup
	// probe and falls back to keyword ranking otherwise.
	ModeAuto Mode = "auto"
	// ModeSemantic requires semantic ranking; a failed probe is fatal.
	ModeSemantic Mode = "semantic"
	// ModeKeyword always ranks by keyword overlap and never probes.
	ModeKeyword Mode = "keyword"
)

// ParseMode converts a RETRIEVAL_MODE value to a Mode. Empty selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSemantic, ModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("rag: unknown retrieval mode %q: valid values: auto, semantic, keyword", s)
	}
}

// probeTimeout bounds the startup embedding probe.
const probeTimeout = 15 * time.Second

// errNoEmbedder is the probe failure when no embedding backend is configured.
var errNoEmbedder = errors.New("no embedding backend configured")

// ResolveCapability decides the process-lifetime capability. In ModeAuto a
// failed probe is logged at WARN and keyword ranking is returned with a nil
// error; in ModeSemantic the same failure is returned as an error.
func ResolveCapability(ctx context.Context, mode Mode, emb Embedder, log *slog.Logger) (Capability, error) {
	if mode == ModeKeyword {
		log.Info("rag: keyword retrieval selected", slog.String("mode", string(mode)))
		return CapabilityKeyword, nil
	}

	err := probe(ctx, emb)
	if err == nil {
		log.Info("rag: semantic retrieval available", slog.String("mode", string(mode)))
		return CapabilitySemantic, nil
	}

	if mode == ModeSemantic {
		return CapabilityKeyword, fmt.Errorf("rag: semantic retrieval required but unavailable: %w", err)
	}

	log.Warn("rag: embedding capability unavailable, falling back to keyword retrieval for this process",
		slog.String("mode", string(mode)),
		slog.String("reason", err.Error()),
	)
	return CapabilityKeyword, nil
}

// probe embeds one short string and checks a non-empty vector comes back.
func probe(ctx context.Context, emb Embedder) error {
	if emb == nil {
		return errNoEmbedder
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	vecs, err := emb.Embed(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return errors.New("embedder returned no vector for probe")
	}
	return nil
}
