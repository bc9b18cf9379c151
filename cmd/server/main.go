package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/codexray/metasearch/internal/cache"
	"github.com/codexray/metasearch/internal/config"
	"github.com/codexray/metasearch/internal/logging"
	"github.com/codexray/metasearch/internal/metrics"
	"github.com/codexray/metasearch/internal/models"
	"github.com/codexray/metasearch/internal/providers"
	"github.com/codexray/metasearch/internal/reliability"
	"github.com/codexray/metasearch/internal/search"
	"github.com/codexray/metasearch/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(logging.Config(cfg.Logging))
	defer func() { _ = log.Sync() }()

	entries := buildProviders(cfg, log)
	if len(entries) == 0 {
		log.Fatal("no search providers configured")
	}

	collector := metrics.NewCollector()
	resultCache := cache.New(cache.Config{
		Capacity: cfg.Cache.Capacity,
		WebTTL:   cfg.Cache.WebTTL,
		NewsTTL:  cfg.Cache.NewsTTL,
	})

	orch := search.NewOrchestrator(entries, resultCache, collector, log, search.Options{
		Concurrency:    cfg.Search.Concurrency,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	})

	srv := server.New(orch, collector.Registry(), log)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: srv.Handler(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("received shutdown signal, draining server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	log.Info("server listening",
		zap.String("port", cfg.Server.HTTPPort),
		zap.Int("providers", len(entries)))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildProviders constructs an adapter and guard per enabled provider.
func buildProviders(cfg *config.Config, log *zap.Logger) []search.ProviderEntry {
	entries := make([]search.ProviderEntry, 0, len(cfg.Providers))
	for _, pc := range cfg.EnabledProviders() {
		var adapter providers.Provider
		switch pc.Name {
		case "serper":
			adapter = wrapTypes(providers.NewSerper(pc.APIKey, pc.BaseURL, pc.Timeout), pc.SearchTypes)
		case "brave":
			adapter = wrapTypes(providers.NewBrave(pc.APIKey, pc.BaseURL, pc.Timeout), pc.SearchTypes)
		case "tavily":
			adapter = wrapTypes(providers.NewTavily(pc.APIKey, pc.BaseURL, pc.Timeout), pc.SearchTypes)
		case "duckduckgo":
			adapter = wrapTypes(providers.NewDuckDuckGo(pc.BaseURL, pc.Timeout), pc.SearchTypes)
		default:
			log.Warn("unknown provider in config", zap.String("provider", pc.Name))
			continue
		}

		guard := reliability.New(pc.Name, reliability.Config{
			FailureThreshold: cfg.Circuit.FailureThreshold,
			Cooldown:         cfg.Circuit.Cooldown,
			Quota:            pc.RateQuota,
			Window:           pc.RateWindow,
			BasePenalty:      reliability.DefaultConfig().BasePenalty,
			MaxPenalty:       reliability.DefaultConfig().MaxPenalty,
		})

		entries = append(entries, search.ProviderEntry{
			Provider:    adapter,
			Guard:       guard,
			Priority:    pc.Priority,
			Weight:      pc.Weight,
			CallTimeout: pc.CallTimeout,
			MaxRetries:  pc.MaxRetries,
		})
		log.Info("provider registered",
			zap.String("provider", pc.Name),
			zap.Int("priority", pc.Priority))
	}
	return entries
}

// wrapTypes restricts a provider to the search types enabled in config.
func wrapTypes(p providers.Provider, types []models.SearchType) providers.Provider {
	return &typedProvider{Provider: p, types: types}
}

type typedProvider struct {
	providers.Provider
	types []models.SearchType
}

func (t *typedProvider) Supports(st models.SearchType) bool {
	if !t.Provider.Supports(st) {
		return false
	}
	if st == models.SearchTypeAll {
		return true
	}
	for _, enabled := range t.types {
		if enabled == st {
			return true
		}
	}
	return false
}
