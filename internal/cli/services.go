package cli

import (
	"context"
	"fmt"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/store"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// services holds the long-lived objects a command needs. They are built once and closed on exit.
type services struct {
	cfg      *config.Config
	log      logger.Logger
	index    port.DocumentIndex
	bolt     *store.BoltIndex
	embedder port.Embedder
	chat     *llm.OllamaClient
	cache    *cache.QueryCache

	ingest   *usecase.IngestUseCase
	retrieve *usecase.RetrieveUseCase
	answer   *usecase.AnswerUseCase
	suggest  *usecase.SuggestUseCase

	warmCancel context.CancelFunc
	warmDone   chan struct{}
}

type serviceNeeds struct {
	embedder bool
	chat     bool
}

func openServices(cfg *config.Config, log logger.Logger, needs serviceNeeds) (*services, error) {
	s := &services{cfg: cfg, log: log}

	if cfg.Index.Ephemeral {
		s.index = memstore.NewMemoryIndex()
	} else {
		dbPath := cfg.IndexDBPath(GetRootDir())
		if err := config.EnsureIndexDir(dbPath); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		bolt, err := store.NewBoltIndex(dbPath, cfg.Index.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		s.bolt = bolt
		s.index = bolt
		log.Debug("Index opened", "path", dbPath)
	}

	if needs.embedder {
		embedder, err := embedding.New(cfg.Embedding)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		s.embedder = embedder
	}

	if needs.chat {
		chat, err := llm.NewOllamaClient(cfg.Chat, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create chat client: %w", err)
		}
		s.chat = chat
	}

	if cfg.RetrieveCache.Size > 0 {
		s.cache = cache.NewQueryCache(cfg.RetrieveCache.Size, cfg.RetrieveCache.TTL)
	}

	if s.embedder != nil {
		splitter, err := chunker.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap, cfg.Chunking.Lookback)
		if err != nil {
			s.Close()
			return nil, err
		}
		var inv usecase.Invalidator
		if s.cache != nil {
			inv = s.cache
		}
		s.ingest = usecase.NewIngestUseCase(splitter, s.embedder, s.index, inv, log)
		s.retrieve = usecase.NewRetrieveUseCase(s.embedder, s.index, s.cache)
		if s.chat != nil {
			s.answer = usecase.NewAnswerUseCase(s.retrieve, s.chat, cfg.Answer, log)
		}
	}
	if s.chat != nil {
		s.suggest = usecase.NewSuggestUseCase(s.chat)
	}

	return s, nil
}

// checkSchema warns when the index was built with other embedding settings, or clears it when rebuild is set.
func (s *services) checkSchema(rebuild bool) error {
	if s.bolt == nil {
		return nil
	}
	res, err := s.bolt.CheckMigration(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	switch {
	case rebuild:
		fmt.Println("Clearing existing index...")
		if err := s.bolt.Clear(); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
		if s.cache != nil {
			s.cache.Purge()
		}
		return s.bolt.Migrate(s.cfg)
	case res.NeedsRebuild:
		s.log.Warn("Index rebuild required, run 'docqa ingest --rebuild'", "reason", res.Reason)
	case res.NeedsMigration:
		s.log.Debug("Running schema migration", "reason", res.Reason)
		return s.bolt.Migrate(s.cfg)
	}
	return nil
}

// startWarmUp loads the chat model in the background while the caller carries on.
// Close stops it if it is still running.
func (s *services) startWarmUp(ctx context.Context) {
	if s.chat == nil || s.warmDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.warmCancel = cancel
	s.warmDone = make(chan struct{})
	go func() {
		defer close(s.warmDone)
		s.chat.WarmUp(ctx)
	}()
}

func (s *services) Close() error {
	if s.warmCancel != nil {
		s.warmCancel()
		<-s.warmDone
		s.warmCancel = nil
	}
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
