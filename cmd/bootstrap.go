package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/togpt/togpt/internal/chat"
	"github.com/togpt/togpt/internal/config"
	"github.com/togpt/togpt/internal/llm"
	"github.com/togpt/togpt/internal/logging"
	"github.com/togpt/togpt/internal/preferences"
	"github.com/togpt/togpt/internal/search"
	"github.com/togpt/togpt/internal/storage"
)

// app wires config, storage, preferences and the chat registry together.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	kv       storage.KV
	prefs    *preferences.Store
	registry *chat.Registry
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
	})
}

func openKV(cfg *config.Config) (storage.KV, error) {
	if ephemeral {
		return storage.NewMemoryKV(), nil
	}
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	return storage.NewSQLiteKV(path)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	kv, err := openKV(cfg)
	if err != nil {
		return nil, err
	}
	a, err := buildApp(ctx, cfg, kv, logger)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return a, nil
}

// buildApp assembles the engine on an already opened store.
func buildApp(ctx context.Context, cfg *config.Config, kv storage.KV, logger *slog.Logger) (*app, error) {
	prefs := preferences.Open(ctx, kv, logger)

	providers := make(map[chat.Model]llm.Provider)
	for _, m := range []chat.Model{chat.ModelGemini, chat.ModelGrok} {
		backend := string(m)
		if cfg.DefaultModel == "mock" {
			backend = "mock"
		}
		p, err := llm.NewProvider(ctx, backend, cfg)
		if err != nil {
			return nil, err
		}
		providers[m] = p
	}

	defaultModel := chat.ModelGemini
	if cfg.DefaultModel == string(chat.ModelGrok) {
		defaultModel = chat.ModelGrok
	}
	factory := func(m chat.Model) chat.Session {
		return llm.NewAdapter(providers[m], prefs, llm.AdapterOptions{Logger: logger})
	}
	registry := chat.New(ctx, storage.NewStore(kv, logger), factory, chat.Options{
		DefaultModel: defaultModel,
		Language:     func() string { return prefs.Preferences().Language },
		Logger:       logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		kv:       kv,
		prefs:    prefs,
		registry: registry,
	}, nil
}

// searcher returns the configured searcher, or nil when search is not set up.
func (a *app) searcher() search.Searcher {
	s, err := search.NewSearcher(a.cfg, a.logger, func() string { return a.prefs.Preferences().Language })
	if err != nil {
		a.logger.Info("web search disabled", "reason", err)
		return nil
	}
	return s
}

func (a *app) Close() {
	a.registry.Close()
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("failed to close store", "err", err)
	}
}
