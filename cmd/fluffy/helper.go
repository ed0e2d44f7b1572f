package main

import (
	"context"
	"fmt"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/crm"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/harvest"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/notify"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/pipeline"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/webhook"
)

// runtimeDeps holds the wired pipeline and the handles the commands need
// for health checks and teardown.
type runtimeDeps struct {
	cache    *session.RedisCache
	pipeline *pipeline.Pipeline
	cleanup  func()
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtimeDeps, error) {
	cache := session.NewRedisCache(cfg.Cache)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		cache.Close()
		return nil, fmt.Errorf("session cache unreachable at %s: %w", cfg.Cache.Addr, err)
	}

	harvester, err := harvest.NewHarvester(cache, cfg.Cache, cfg.Harvest)
	if err != nil {
		cache.Close()
		return nil, err
	}

	providers, err := analysis.ProvidersFromConfig(cfg.Models)
	if err != nil {
		cache.Close()
		return nil, err
	}
	engine, err := analysis.NewEngine(providers)
	if err != nil {
		cache.Close()
		return nil, err
	}

	store, closeStore, err := buildLeadStore(ctx, cfg.Store)
	if err != nil {
		cache.Close()
		return nil, err
	}

	tokens, err := token.NewFileStore(cfg.Tokens.Path)
	if err != nil {
		closeStore()
		cache.Close()
		return nil, err
	}

	adapters := []crm.Adapter{
		crm.NewSheetsAdapter(cfg.Sheets, tokens),
		crm.NewHubSpotAdapter(cfg.HubSpot, tokens),
		crm.NewZohoAdapter(cfg.Zoho, tokens),
	}

	pipe, err := pipeline.New(
		harvester,
		cache,
		engine,
		store,
		tokens,
		adapters,
		webhook.NewDispatcher(cfg.Webhooks),
		notify.FromConfig(cfg.Notify),
		cfg.Harvest,
	)
	if err != nil {
		closeStore()
		cache.Close()
		return nil, err
	}

	return &runtimeDeps{
		cache:    cache,
		pipeline: pipe,
		cleanup: func() {
			closeStore()
			cache.Close()
		},
	}, nil
}

func buildLeadStore(ctx context.Context, cfg config.StoreConfig) (lead.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := lead.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case "", "file":
		store, err := lead.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
