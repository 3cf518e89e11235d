package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docqa-go/internal/agent"
	"github.com/54b3r/docqa-go/internal/answer"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/store"
)

// runtime bundles everything a command needs to query or replace the corpus.
type runtime struct {
	settings    *config.Settings
	agent       *agent.Agent
	store       store.FragmentStore
	embedder    rag.Embedder
	embedCfg    embedder.Config
	chatModel   model.BaseChatModel
	providerCfg *provider.Config
}

// Close releases the corpus store.
func (r *runtime) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// buildRuntime resolves settings, opens the corpus store, resolves the
// retrieval capability and loads the persisted corpus. The chat model is
// only constructed when withModel is true.
func buildRuntime(ctx context.Context, log *slog.Logger, withModel bool) (*runtime, error) {
	settings, err := config.SettingsFromEnv()
	if err != nil {
		return nil, err
	}
	rt := &runtime{settings: settings}

	rt.embedCfg = embedder.ConfigFromEnv()
	embedder.Validate(rt.embedCfg, log)
	rt.embedder, err = embedder.New(ctx, rt.embedCfg)
	if err != nil {
		if settings.RetrievalMode == rag.ModeSemantic {
			return nil, fmt.Errorf("failed to initialise embedder: %w", err)
		}
		log.Warn("embedder unavailable, using keyword retrieval", slog.Any("error", err))
		rt.embedder = nil
	}

	capability, err := rag.ResolveCapability(ctx, settings.RetrievalMode, rt.embedder, log)
	if err != nil {
		return nil, err
	}
	if capability == rag.CapabilityKeyword {
		rt.embedder = nil
	}
	ranker, err := rag.New(capability, rt.embedder)
	if err != nil {
		return nil, err
	}

	path := settings.CorpusPath
	if path == "" {
		if path, err = store.DefaultPath(); err != nil {
			return nil, fmt.Errorf("failed to resolve corpus path: %w", err)
		}
	}
	rt.store, err = store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus store %s: %w", path, err)
	}
	log.Info("corpus store opened", slog.String("path", path))

	var composer agent.Composer
	if withModel {
		rt.providerCfg = provider.ConfigFromEnv()
		if err := rt.providerCfg.Validate(); err != nil {
			rt.Close()
			return nil, err
		}
		rt.chatModel, err = provider.New(ctx, rt.providerCfg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to initialise model provider: %w", err)
		}
		log.Info("provider initialised",
			slog.String("provider", string(rt.providerCfg.Backend)),
			slog.String("model", rt.providerCfg.ModelName()),
		)

		c, err := answer.New(answer.Config{
			Model:     rt.chatModel,
			MaxChunks: settings.MaxChunks,
			Timeout:   settings.AnswerTimeout,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		composer = c
	}

	rt.agent, err = agent.New(&agent.Config{
		Ranker:   ranker,
		Composer: composer,
		Store:    rt.store,
		TopK:     settings.TopK,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	snap, err := rt.agent.Load(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	log.Info("corpus loaded",
		slog.String("snapshot_id", snap.ID()),
		slog.Int("fragments", snap.Len()),
		slog.String("capability", capability.String()),
	)

	return rt, nil
}

// buildPingers constructs the ordered readiness probes for the server.
func buildPingers(rt *runtime) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(rt.chatModel, provider.NewHealthCheck(rt.providerCfg), string(rt.providerCfg.Backend)),
		server.NewStorePinger(rt.store),
	}
	if rt.embedder != nil {
		pingers = append(pingers, server.NewEmbedderPinger(rt.embedder, rt.embedCfg.Backend))
	}
	return pingers
}

// sourceList renders sources for terminal output.
func sourceList(sources []string) string {
	if len(sources) == 0 {
		return "(none)"
	}
	return strings.Join(sources, ", ")
}
