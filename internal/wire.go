package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/heritage/internal/backend"
	"github.com/starford/heritage/internal/catalog"
	"github.com/starford/heritage/internal/narration"
	"github.com/starford/heritage/internal/preview"
	"github.com/starford/heritage/internal/storage"
)

// content is the configured content source and what backs it.
type content struct {
	source preview.ContentSource
	ready  func(ctx context.Context) error

	// Set for the local catalog only.
	db    *catalog.DB
	store storage.Provider
}

func (c *content) close() {
	if c.db != nil {
		c.db.Close()
	}
}

// sync re-imports the content directory into the catalog.
func (c *content) sync(logger *slog.Logger) func(context.Context) (catalog.SyncResult, error) {
	if c.db == nil {
		return nil
	}
	return func(context.Context) (catalog.SyncResult, error) {
		return catalog.Sync(c.db, c.store, logger)
	}
}

func openContent(cfg *Config, logger *slog.Logger) (*content, error) {
	switch cfg.Content.Source {
	case SourceBackend:
		client := backend.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)
		return &content{source: client, ready: client.Ping}, nil

	case SourceCatalog:
		if err := os.MkdirAll(cfg.Content.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create content dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Content.Dir)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		db, err := catalog.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w", err)
		}
		res, err := catalog.Sync(db, store, logger)
		if err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		} else {
			logger.Info("Catalog synced",
				slog.Int("indexed", res.Indexed),
				slog.Int("removed", res.Removed),
				slog.Int("failed", res.Failed),
				slog.Any("stories", res.Stories))
		}
		return &content{source: db, ready: db.Ping, db: db, store: store}, nil
	}
	return nil, fmt.Errorf("unknown content source %q", cfg.Content.Source)
}

func newSynthesizer(cfg *NarrationConfig) (narration.Synthesizer, error) {
	switch cfg.Provider {
	case ProviderFunction:
		return narration.NewFunctionClient(cfg.URL, cfg.Function, cfg.APIKey, cfg.Timeout), nil
	case ProviderOpenAI:
		return narration.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	}
	return nil, fmt.Errorf("unknown narration provider %q", cfg.Provider)
}

func previewOptions(cfg *Config, src preview.ContentSource, synth narration.Synthesizer, logger *slog.Logger) preview.Options {
	return preview.Options{
		Source:           src,
		Synthesizer:      synth,
		Logger:           logger,
		LoadTimeout:      cfg.Preview.LoadTimeout,
		NarrationTimeout: cfg.Narration.Timeout,
		IdleTTL:          cfg.Preview.IdleTTL,
		MaxActivations:   cfg.Preview.MaxActivations,
	}
}
