package embedding

import (
	"fmt"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache when cfg.CacheSize > 0.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	var (
		embedder port.Embedder
		err      error
	)

	switch config.NormalizeProvider(cfg.Provider) {
	case config.ProviderOllama:
		embedder, err = NewRemote(cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.Dimension)
	case config.ProviderLocal:
		embedder, err = NewCybertronLocal(cfg.LocalModel, cfg.ModelsDir, cfg.BatchSize, cfg.Workers)
	default:
		return nil, domain.ConfigError("embed", fmt.Sprintf("unsupported embedding provider: %q", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return NewCached(embedder, cfg.CacheSize)
	}
	return embedder, nil
}
